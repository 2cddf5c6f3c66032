package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/inkwell/pkg/drafts"
	"github.com/agentstation/inkwell/pkg/notifications"
)

var title = cases.Title(language.English)

// Drafts is a list of drafts with a table form.
type Drafts []drafts.Draft

// Table implements Tabular.
func (ds Drafts) Table() Data {
	data := Data{
		Headers:      []string{"ID", "Title", "Status", "Words", "Read", "Saved", "Offline"},
		RightAligned: []int{3},
	}
	for _, d := range ds {
		status := d.Fields.String("status")
		if status == "" {
			status = "draft"
		}
		data.Rows = append(data.Rows, []string{
			d.ID,
			orUntitled(d.Fields.Title()),
			title.String(strings.ToLower(status)),
			strconv.Itoa(d.Fields.WordCount()),
			fmt.Sprintf("%d min", d.Fields.ReadingMinutes()),
			d.SavedAt.Local().Format(time.DateTime),
			yesNo(d.OriginIsOffline),
		})
	}
	return data
}

// Notifications is a list of notifications with a table form.
type Notifications []notifications.Notification

// Table implements Tabular.
func (ns Notifications) Table() Data {
	data := Data{Headers: []string{"ID", "", "Priority", "Category", "Title", "Created"}}
	for _, n := range ns {
		marker := "•"
		if n.IsRead {
			marker = ""
		}
		data.Rows = append(data.Rows, []string{
			n.ID,
			marker,
			title.String(strings.ToLower(string(n.Priority))),
			title.String(strings.ToLower(string(n.Category))),
			n.Title,
			n.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return data
}

// Preferences is the notification preferences with a table form.
type Preferences notifications.Preferences

// Table implements Tabular.
func (p Preferences) Table() Data {
	return Data{
		Headers: []string{"Setting", "Enabled"},
		Rows: [][]string{
			{"Email", yesNo(p.Email)},
			{"In-app", yesNo(p.InApp)},
			{"Push", yesNo(p.Push)},
			{"Content", yesNo(p.Content)},
			{"Community", yesNo(p.Community)},
			{"Platform", yesNo(p.Platform)},
		},
	}
}

func orUntitled(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Untitled"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
