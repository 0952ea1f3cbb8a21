package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type pageData struct {
	Title   string
	Page    string
	Pricing []config.PricingEntry
}

func (s *Server) registerPageRoutes() error {
	tmpl, err := template.New("pages").
		Funcs(template.FuncMap{"rub": formatRoubles}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("parse page templates: %w", err)
	}
	s.engine.SetHTMLTemplate(tmpl)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}
	s.engine.StaticFS("/static", http.FS(static))

	s.engine.GET("/", s.IndexPage)
	s.engine.GET("/about", s.AboutPage)
	s.engine.GET("/contacts", s.ContactsPage)
	return nil
}

func (s *Server) IndexPage(c *gin.Context) {
	s.renderPage(c, "index.html", pageData{
		Title:   "Ремонт холодильников на дому",
		Page:    "index",
		Pricing: s.pricing.Entries(),
	})
}

func (s *Server) AboutPage(c *gin.Context) {
	s.renderPage(c, "about.html", pageData{Title: "О нас", Page: "about"})
}

func (s *Server) ContactsPage(c *gin.Context) {
	s.renderPage(c, "contacts.html", pageData{Title: "Контакты", Page: "contacts"})
}

func (s *Server) renderPage(c *gin.Context, name string, data pageData) {
	c.HTML(http.StatusOK, name, data)
	if len(c.Errors) > 0 {
		logger.FromContext(c.Request.Context()).Error("render page failed",
			zap.String("template", name),
			zap.Error(c.Errors.Last().Err),
		)
	}
}

func (s *Server) ListPricing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.pricing.Entries()})
}

// formatRoubles groups digits by thousands with a non-breaking space.
func formatRoubles(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString("\u00a0")
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}
