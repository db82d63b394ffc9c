// Package rewrite rewrites HTML documents as they stream through the router.
//
// A Rewriter holds an ordered list of (selector, handler) rules. Every start
// tag that matches a selector is handed to the rule's ElementHandler, which
// may replace the element's inner content or change its attributes. Markup
// no rule touches is copied byte for byte.
//
// Selectors are deliberately small: "tag", "tag#id" and "#id".
//
//	rw := rewrite.New().
//		On("h1#title", rewrite.InnerContentRewriter{Content: "Hello"}).
//		On("a#url", rewrite.AttributeRewriter{Name: "href", Value: "https://example.com"})
//	err := rw.Rewrite(w, res.Body)
package rewrite
