package support

import (
	"context"
	"strings"
)

type keywordRule struct {
	keywords []string
	reply    string
}

const defaultReply = "I can help with routes, applying for a pass, status, allocation, and cancellations. " +
	"Please share more details about your question."

var keywordRules = []keywordRule{
	{
		keywords: []string{"route", "routes", "bus"},
		reply: "To view routes, go to 'View Routes' from your dashboard. " +
			"Click a route to apply, fill the form, and submit.",
	},
	{
		keywords: []string{"apply", "application", "pass"},
		reply: "Apply by choosing a route, completing the form, and submitting. " +
			"Your status will be PENDING, then PAID (simulated), and an admin may ALLOCATE a seat.",
	},
	{
		keywords: []string{"status", "allocated", "seat"},
		reply: "Check 'My Bus Pass' to see the latest status. " +
			"If ALLOCATED, you'll see your seat number and can download the pass.",
	},
	{
		keywords: []string{"cancel", "refund"},
		reply:    "You can cancel a PENDING or PAID application from 'My Bus Pass' using the Cancel button.",
	},
	{
		keywords: []string{"login", "register", "account"},
		reply: "Use Login from the navbar or register from the sign-up page. " +
			"If login fails, check your username and password and retry.",
	},
}

// KeywordResponder matches the first rule whose keyword occurs in the message.
type KeywordResponder struct {
	rules []keywordRule
}

func NewKeywordResponder() *KeywordResponder {
	return &KeywordResponder{rules: keywordRules}
}

func (k *KeywordResponder) Name() string { return "keyword" }

func (k *KeywordResponder) Reply(_ context.Context, message string) (string, error) {
	return k.Answer(message), nil
}

// Answer never fails.
func (k *KeywordResponder) Answer(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range k.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}
	return defaultReply
}
