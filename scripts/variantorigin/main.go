// Variantorigin is a local stand-in for the variant directory and both
// variant origins, used to run the router without external services.
//
// Usage:
//
//	go run ./scripts/variantorigin -port 8081
//
// Then start the router with DIRECTORY_URL=http://localhost:8081/api/variants.
// GET /variants/1 and /variants/2 serve HTML pages carrying the elements the
// router rewrites; /api/variants lists them; /health answers ok.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
)

var page = template.Must(template.New("variant").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Variant {{.N}}</title>
</head>
<body style="background: {{.Color}}">
  <h1 id="title">Variant {{.N}}</h1>
  <p id="description">This is variant {{.N}} of the take home project!</p>
  <a id="url" href="https://example.com/variant-{{.N}}">Return to example.com</a>
</body>
</html>
`))

var colors = map[int]string{1: "#f6f0e4", 2: "#e4eef6"}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	host := flag.String("host", "localhost", "host name advertised in /api/variants")
	failVariant := flag.Int("fail", 0, "variant (1 or 2) that answers 503, 0 for none")
	flag.Parse()

	base := fmt.Sprintf("http://%s:%d", *host, *port)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/variants", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("directory: from=%s cache-control=%q", r.RemoteAddr, r.Header.Get("Cache-Control"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{
			"variants": {base + "/variants/1", base + "/variants/2"},
		})
	})

	mux.HandleFunc("GET /variants/{n}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("n"))
		if err != nil || (n != 1 && n != 2) {
			http.NotFound(w, r)
			return
		}
		log.Printf("variant %d: from=%s", n, r.RemoteAddr)

		if n == *failVariant {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := page.Execute(w, struct {
			N     int
			Color string
		}{n, colors[n]}); err != nil {
			log.Printf("render variant %d: %v", n, err)
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting variant origin on %s (directory %s/api/variants)", addr, base)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
