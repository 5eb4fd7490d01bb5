// Package rewards reports finished runs to the external reward service and
// turns every possible answer into an Outcome the player can be shown. Submit
// never fails: transport errors and rejections become a "failed" outcome.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/pkg/client"
)

// Status is the kind of answer a submission got
type Status string

const (
	StatusPending          Status = "pending"
	StatusClaimed          Status = "claimed"
	StatusAlreadyCompleted Status = "already_completed"
	StatusLoginRequired    Status = "login_required"
	StatusFailed           Status = "failed"
)

// Retryable reports whether a manual claim may be attempted again.
func (s Status) Retryable() bool {
	return s == StatusFailed
}

// Outcome is what the result dialog or toast shows.
type Outcome struct {
	Status           Status       `json:"status"`
	Diamonds         int          `json:"diamonds"`
	Experience       int          `json:"experience"`
	AlreadyCompleted bool         `json:"already_completed"`
	User             *client.User `json:"user,omitempty"`
	Title            string       `json:"title"`
	Message          string       `json:"message"`
}

// Completer is the subset of the reward client the adapter needs
type Completer interface {
	CompleteActivity(ctx context.Context, creds client.Credentials, req client.CompleteRequest) (*client.CompleteResponse, error)
}

// Adapter submits completions
type Adapter struct {
	completer Completer
	logger    *slog.Logger
}

// NewAdapter creates a new adapter
func NewAdapter(completer Completer, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{completer: completer, logger: logger}
}

// Submit reports res on behalf of the player. Anonymous players get
// login_required without a network call.
func (a *Adapter) Submit(ctx context.Context, creds client.Credentials, res game.Result) Outcome {
	if creds.BearerToken == "" && creds.Cookie == "" {
		return LoginRequired()
	}

	spent := res.TimeSpentSeconds()
	resp, err := a.completer.CompleteActivity(ctx, creds, client.CompleteRequest{
		Slug:      res.Slug,
		Score:     res.Score,
		TimeSpent: &spent,
	})
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return LoginRequired()
	case err != nil:
		a.logger.Error("failed to submit completion", "slug", res.Slug, "error", err)
		return Failed()
	case resp == nil || !resp.Success:
		msg := ""
		if resp != nil {
			msg = resp.Message
		}
		a.logger.Warn("completion rejected", "slug", res.Slug, "message", msg)
		return Failed()
	}

	if resp.AlreadyCompleted {
		return Outcome{
			Status:           StatusAlreadyCompleted,
			AlreadyCompleted: true,
			User:             resp.User,
			Title:            "Already Completed",
			Message:          "You have already completed this activity.",
		}
	}
	return Outcome{
		Status:     StatusClaimed,
		Diamonds:   resp.Rewards.Diamonds,
		Experience: resp.Rewards.Experience,
		User:       resp.User,
		Title:      "Rewards claimed!",
		Message:    fmt.Sprintf("+%d diamonds, +%d XP", resp.Rewards.Diamonds, resp.Rewards.Experience),
	}
}

// LoginRequired is the outcome for anonymous or rejected players.
func LoginRequired() Outcome {
	return Outcome{
		Status:  StatusLoginRequired,
		Title:   "Login required",
		Message: "Log in to save your progress and earn rewards.",
	}
}

// Failed is the outcome for any error; the player may retry.
func Failed() Outcome {
	return Outcome{
		Status:  StatusFailed,
		Title:   "Error",
		Message: "An error occurred while saving your progress. Please try again.",
	}
}
