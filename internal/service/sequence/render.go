package sequence

import (
	"strings"
	"sync"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/osteele/liquid"
)

// Renderer renders step copy with Liquid. Parsed templates are cached by
// source text since sequences are immutable.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // source -> *liquid.Template
}

func NewRenderer() *Renderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value any, fallback string) any {
		if s, ok := value.(string); value == nil || ok && strings.TrimSpace(s) == "" {
			return fallback
		}
		return value
	})
	return &Renderer{engine: engine}
}

// Render returns src unchanged when it carries no Liquid markup.
func (r *Renderer) Render(src string, vars map[string]any) (string, error) {
	if !strings.Contains(src, "{{") && !strings.Contains(src, "{%") {
		return src, nil
	}
	if cached, ok := r.cache.Load(src); ok {
		return cached.(*liquid.Template).RenderString(vars)
	}
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return "", err
	}
	r.cache.Store(src, tpl)
	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Validate parses src without rendering.
func (r *Renderer) Validate(src string) error {
	_, err := r.engine.ParseString(src)
	return err
}

// templateVars is the binding set every step template sees.
func templateVars(p model.Person, c model.Company, snd *model.Sender) map[string]any {
	vars := map[string]any{
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"full_name":    strings.TrimSpace(p.FirstName + " " + p.LastName),
		"title":        p.Title,
		"email":        p.Email,
		"company_name": c.Name,
		"industry":     c.Industry,
		"city":         c.City,
		"state":        c.State,
	}
	if snd != nil {
		vars["sender_name"] = snd.FullName
		vars["sender_title"] = snd.Title
		vars["sender_company"] = snd.Company
		vars["sender_phone"] = snd.Phone
		vars["signature"] = snd.SignatureHTML
	}
	return vars
}
