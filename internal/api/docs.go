package api

import (
    "net/http"
    "os"
)

// openAPILoad loads the OpenAPI bytes. OPENAPI_PATH overrides the repo
// default for container deployments.
func openAPILoad() ([]byte, error) {
    path := os.Getenv("OPENAPI_PATH")
    if path == "" { path = "openapi/openapi.yaml" }
    return os.ReadFile(path)
}

// OpenAPIHandler serves the OpenAPI spec
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
    b, err := openAPILoad()
    if err != nil { writeProblem(w, 500, "OpenAPI not available", err.Error(), r.URL.Path); return }
    w.Header().Set("Content-Type", "application/yaml")
    w.WriteHeader(200)
    _, _ = w.Write(b)
}

// DocsHandler serves a minimal ReDoc page referencing /openapi.yaml
func (s *Server) DocsHandler(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.WriteHeader(200)
    _, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>Supply Network Optimizer API</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <script src="https://cdn.jsdelivr.net/npm/redoc@next/bundles/redoc.standalone.js"></script>
    </head><body>
    <redoc spec-url="/openapi.yaml"></redoc>
    </body></html>`))
}
