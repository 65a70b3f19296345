package conversation

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeclass-ai/schoolbot/internal/intent"
)

type fixedCounter struct {
	count int
	err   error
}

func (f fixedCounter) CountEnrolled(ctx context.Context) (int, error) {
	return f.count, f.err
}

func seededRenderer(counter EnrollmentCounter) *Renderer {
	return NewRenderer(counter, rand.New(rand.NewSource(1)), testLogger())
}

func TestRenderSubstitutesParentName(t *testing.T) {
	r := seededRenderer(nil)
	tpl := &intent.Template{Variants: []string{"Здравствуйте, {parent_name}!"}}

	got := r.Render(context.Background(), tpl, map[string]string{"parent_name": "Анна"})
	assert.Equal(t, "Здравствуйте, Анна!", got)
}

func TestRenderDefaultsParentName(t *testing.T) {
	r := seededRenderer(nil)
	tpl := &intent.Template{Variants: []string{"Здравствуйте, {parent_name}!"}}

	got := r.Render(context.Background(), tpl, nil)
	assert.Equal(t, "Здравствуйте, Уважаемый родитель!", got)
}

func TestRenderDropsUnknownPlaceholders(t *testing.T) {
	r := seededRenderer(nil)
	tpl := &intent.Template{Variants: []string{"Курс{promo_suffix} ждет вас"}}

	got := r.Render(context.Background(), tpl, nil)
	assert.Equal(t, "Курс ждет вас", got)
}

func TestRenderComposesGreetingBodyFollowUp(t *testing.T) {
	r := seededRenderer(nil)
	tpl := &intent.Template{
		Greeting: []string{"Привет!"},
		Body:     "Мы учим детей программировать.",
		FollowUp: []string{"Записать вас на пробное занятие?"},
	}

	got := r.Render(context.Background(), tpl, nil)
	assert.Equal(t, "Привет!\n\nМы учим детей программировать.\n\nЗаписать вас на пробное занятие?", got)
}

func TestRenderPromoBodySwitchesOnEnrollment(t *testing.T) {
	tpl := &intent.Template{
		BodyPromoActive: "Скидка действует!",
		BodyPromoEnded:  "Промо закончилось.",
	}

	active := seededRenderer(fixedCounter{count: 10})
	assert.Equal(t, "Скидка действует!", active.Render(context.Background(), tpl, nil))

	ended := seededRenderer(fixedCounter{count: 150})
	assert.Equal(t, "Промо закончилось.", ended.Render(context.Background(), tpl, nil))
}

func TestRenderPromoFallsBackWhenCounterFails(t *testing.T) {
	tpl := &intent.Template{
		BodyPromoActive: "Скидка действует!",
		BodyPromoEnded:  "Промо закончилось.",
	}
	r := seededRenderer(fixedCounter{err: errors.New("db down")})
	assert.Equal(t, "Промо закончилось.", r.Render(context.Background(), tpl, nil))
}

func TestRenderEmptyTemplate(t *testing.T) {
	r := seededRenderer(nil)
	assert.Equal(t, "", r.Render(context.Background(), nil, nil))
	assert.Equal(t, "", r.Render(context.Background(), &intent.Template{}, nil))
}
