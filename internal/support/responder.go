// Package support answers help-desk chat messages.
// Responders are tried in order; the keyword responder always answers.
package support

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const systemPrompt = "You are a friendly support assistant for a college bus pass system called Busmate. " +
	"Answer concisely. If asked about status or steps, list clear steps."

var ErrEmptyReply = errors.New("support: empty reply")

// Responder produces a reply for one user message.
type Responder interface {
	Name() string
	Reply(ctx context.Context, message string) (string, error)
}

// Chain tries each responder under its own timeout and falls back to a
// responder that cannot fail.
type Chain struct {
	responders []Responder
	fallback   *KeywordResponder
	timeout    time.Duration
}

func NewChain(timeout time.Duration, responders ...Responder) *Chain {
	return &Chain{responders: responders, fallback: NewKeywordResponder(), timeout: timeout}
}

func (c *Chain) Reply(ctx context.Context, message string) string {
	for _, r := range c.responders {
		reply, err := c.try(ctx, r, message)
		if err == nil {
			return reply
		}
		logrus.WithError(err).WithField("responder", r.Name()).Warn("support: responder failed, falling through")
		if ctx.Err() != nil {
			break
		}
	}
	return c.fallback.Answer(message)
}

func (c *Chain) try(ctx context.Context, r Responder, message string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	reply, err := r.Reply(ctx, message)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
