package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/appsail/convo/pkg/domain"
)

// Transcript renders a conversation state as markdown.
func Transcript(st *domain.ConversationState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Conversation %s\n\n", st.Key)
	fmt.Fprintf(&b, "- **Flow:** %s\n", st.Flow)
	fmt.Fprintf(&b, "- **State:** `%s`\n", st.CurrentState)
	fmt.Fprintf(&b, "- **Version:** %d\n", st.Version)
	fmt.Fprintf(&b, "- **Updated:** %s\n", st.UpdatedAt.Format(time.RFC3339))
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "- **Expires:** %s\n", st.ExpiresAt.Format(time.RFC3339))
	}
	if st.PendingOrder != nil {
		fmt.Fprintf(&b, "- **Pending order:** ₹%s\n", st.PendingOrder.GrandTotal)
	}

	if len(st.LastOptions) > 0 {
		b.WriteString("\n## Offered options\n\n")
		for _, o := range st.LastOptions {
			fmt.Fprintf(&b, "- %s (`%s`)\n", o.Label, o.ID)
		}
	}

	if len(st.Data) > 0 {
		b.WriteString("\n## Data\n\n| key | value |\n|---|---|\n")
		keys := make([]string, 0, len(st.Data))
		for k := range st.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "| %s | %v |\n", k, st.Data[k])
		}
	}

	b.WriteString("\n## History\n\n")
	if len(st.History) == 0 {
		b.WriteString("_empty_\n")
	}
	for _, h := range st.History {
		fmt.Fprintf(&b, "- `%s` **%s** _%s_: %s\n", h.Timestamp.Format("15:04:05"), h.Origin, h.Type, oneLine(h.Content))
	}

	if len(st.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range st.Errors {
			fmt.Fprintf(&b, "- `%s` in `%s`: %s\n", e.Timestamp.Format(time.RFC3339), e.State, oneLine(e.Reason))
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ⏎ ")
}
