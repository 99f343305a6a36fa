// Package service holds the business rules that sit between the HTTP
// handlers and the repositories.
package service

import (
	"context"
	"regexp"
	"strings"

	"plantspack/internal/contentsafety"
	"plantspack/internal/models"
	"plantspack/internal/validation"
)

// EventPublisher delivers realtime events. *notifications.Publisher implements it.
type EventPublisher interface {
	PublishUser(ctx context.Context, userID uint, eventType string, payload any)
	PublishBroadcast(ctx context.Context, eventType string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) PublishUser(context.Context, uint, string, any) {}
func (noopPublisher) PublishBroadcast(context.Context, string, any) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

type allowAll struct{}

func (allowAll) Analyze(context.Context, string) contentsafety.Result {
	return contentsafety.Result{Categories: map[string]float64{}, Reasons: []string{}}
}

func checkerOrAllow(c contentsafety.Checker) contentsafety.Checker {
	if c == nil {
		return allowAll{}
	}
	return c
}

// screen rejects text the classifier wants blocked.
func screen(ctx context.Context, checker contentsafety.Checker, text string) error {
	res := checker.Analyze(ctx, text)
	if res.ShouldBlock {
		return models.NewContentBlockedError(res.Reasons)
	}
	return nil
}

var (
	// Both patterns take the whole run so over-long or badly terminated
	// tokens are dropped instead of being cut short.
	hashtagPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_&])#([\p{L}\p{N}_]+)`)
	mentionPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])@([A-Za-z0-9_-]+)`)
)

// mentionable reports whether name has the shape of a username: 3-30
// characters that start and end with a letter or digit.
func mentionable(name string) bool {
	if len(name) < 3 || len(name) > 30 {
		return false
	}
	first, last := name[0], name[len(name)-1]
	return first != '_' && first != '-' && last != '_' && last != '-'
}

// ExtractHashtags returns the distinct normalized hashtags in text, in order of appearance.
func ExtractHashtags(text string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		tag, err := validation.NormalizeHashtag(m[1])
		if err != nil || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// ExtractMentions returns the distinct lowercase @usernames in text.
func ExtractMentions(text string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		if !mentionable(name) || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
