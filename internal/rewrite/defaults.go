package rewrite

const (
	PageTitle       = "A/B Variant Router"
	PageDescription = "This page was served by one of two variants. Each new visitor is sent to " +
		"the variant that has received fewer visits so far, and a cookie keeps returning " +
		"visitors on the variant they first saw. A coin flip would not split traffic evenly " +
		"once repeat visitors stick to their variant, so the router counts assignments " +
		"instead. The counts live in memory and start again from zero whenever an " +
		"instance restarts."
	LinkText = "Go to the repo's GitHub page."
	LinkHref = "https://github.com/angeloszaimis/ab-router"
)

// Default returns the rewriter applied to every variant page.
func Default() *Rewriter {
	return New().
		On("title", InnerContentRewriter{Content: PageTitle}).
		On("h1#title", InnerContentRewriter{Content: PageTitle}).
		On("p#description", InnerContentRewriter{Content: PageDescription}).
		On("a#url", InnerContentRewriter{Content: LinkText}).
		On("a#url", AttributeRewriter{Name: "href", Value: LinkHref})
}
