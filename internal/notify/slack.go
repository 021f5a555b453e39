// Package notify pushes new-issue notifications to Slack.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/faultline/faultline/internal/database"
)

// SlackNotifier posts a message to a Slack channel when a new issue group is
// created. A nil notifier is valid and does nothing.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier, or nil when no token is configured
func NewSlackNotifier(token, channel string) *SlackNotifier {
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
	}
}

// NotifyNewGroup announces a newly created issue group. Posting happens in
// the background so the ingestion path never waits on Slack.
func (n *SlackNotifier) NotifyNewGroup(group *database.Group) {
	if n == nil {
		return
	}
	go func() {
		text := fmt.Sprintf("🆕 *New issue* `%s`: %s\n_%s_ · level %s",
			group.QualifiedShortID(), group.Title, group.Culprit, group.LevelLabel())
		_, _, err := n.client.PostMessage(
			n.channel,
			slack.MsgOptionText(text, false),
		)
		if err != nil {
			log.Printf("SlackNotifier: failed to post new-issue message: %v", err)
		}
	}()
}
