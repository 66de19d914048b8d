package channels

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
)

// Slack checks bot tokens with auth.test.
type Slack struct {
	// APIURL overrides the Slack API base, mainly for tests.
	APIURL     string
	HTTPClient *http.Client
}

func NewSlack() *Slack { return &Slack{} }

func (s *Slack) Name() string { return "slack" }

// Verify implements Verifier.
func (s *Slack) Verify(ctx context.Context, token string) (Identity, error) {
	opts := []slack.Option{slack.OptionHTTPClient(httpClientOrDefault(s.HTTPClient))}
	if s.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(s.APIURL, "/")+"/"))
	}
	resp, err := slack.New(strings.TrimSpace(token), opts...).AuthTestContext(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("slack auth.test: %w", err)
	}
	return Identity{ID: resp.UserID, Username: resp.User, Team: resp.Team}, nil
}
