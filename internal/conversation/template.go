package conversation

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/codeclass-ai/schoolbot/internal/intent"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// defaultParentName is substituted when the profile has no recorded name.
const defaultParentName = "Уважаемый родитель"

// promoSeats is the enrollment count at which the promo body switches off.
const promoSeats = 100

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// EnrollmentCounter reports how many families are already enrolled. Used to
// pick between active-promo and promo-ended template bodies.
type EnrollmentCounter interface {
	CountEnrolled(ctx context.Context) (int, error)
}

// Renderer assembles scripted replies from intent templates.
type Renderer struct {
	enrolled EnrollmentCounter
	rnd      *rand.Rand
	logger   *logging.Logger
}

func NewRenderer(enrolled EnrollmentCounter, rnd *rand.Rand, logger *logging.Logger) *Renderer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Renderer{enrolled: enrolled, rnd: rnd, logger: logger}
}

// Render produces the reply text for a template. Variant templates return one
// variant at random; composite templates join greeting, body and follow-up.
func (r *Renderer) Render(ctx context.Context, tpl *intent.Template, data map[string]string) string {
	if tpl == nil || tpl.Empty() {
		return ""
	}
	if len(tpl.Variants) > 0 {
		return r.substitute(r.pick(tpl.Variants), data)
	}

	var parts []string
	if len(tpl.Greeting) > 0 {
		parts = append(parts, r.pick(tpl.Greeting))
	}
	if body := r.body(ctx, tpl); body != "" {
		parts = append(parts, body)
	}
	if len(tpl.FollowUp) > 0 {
		parts = append(parts, r.pick(tpl.FollowUp))
	}
	return r.substitute(strings.Join(parts, "\n\n"), data)
}

func (r *Renderer) body(ctx context.Context, tpl *intent.Template) string {
	if tpl.BodyPromoActive == "" && tpl.BodyPromoEnded == "" {
		return tpl.Body
	}
	count, err := r.enrolledCount(ctx)
	if err != nil {
		r.logger.Warn("enrollment count unavailable, using promo-ended body", "error", err)
		count = promoSeats
	}
	if count < promoSeats && tpl.BodyPromoActive != "" {
		return tpl.BodyPromoActive
	}
	if tpl.BodyPromoEnded != "" {
		return tpl.BodyPromoEnded
	}
	return tpl.Body
}

func (r *Renderer) enrolledCount(ctx context.Context) (int, error) {
	if r.enrolled == nil {
		return promoSeats, nil
	}
	return r.enrolled.CountEnrolled(ctx)
}

func (r *Renderer) pick(options []string) string {
	if len(options) == 1 {
		return options[0]
	}
	return options[r.rnd.Intn(len(options))]
}

// substitute replaces {placeholder} markers with values from data. An absent
// parent_name falls back to a polite generic form; other unknown placeholders
// are removed.
func (r *Renderer) substitute(text string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		if val, ok := data[key]; ok && val != "" {
			return val
		}
		if key == "parent_name" {
			return defaultParentName
		}
		return ""
	})
}
