package handler

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var openAPISpec []byte

// openAPIETag is a strong validator for the embedded document.
var openAPIETag = func() string {
	sum := sha256.Sum256(openAPISpec)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// SwaggerSpec serves the embedded OpenAPI document. It answers 304 when the
// client already holds the current revision.
func SwaggerSpec(c *gin.Context) {
	c.Header("ETag", openAPIETag)
	c.Header("Cache-Control", "public, max-age=300")
	if c.GetHeader("If-None-Match") == openAPIETag {
		c.AbortWithStatus(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/yaml", openAPISpec)
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Solana Custody Gateway API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/swagger/spec',
      dom_id: '#swagger-ui',
      persistAuthorization: false,
      supportedSubmitMethods: ['get']
    });
  </script>
</body>
</html>`

// SwaggerUI serves a read-only Swagger UI page for /swagger/spec. Try-it-out
// is limited to GET so the page cannot trigger custody operations.
func SwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}
