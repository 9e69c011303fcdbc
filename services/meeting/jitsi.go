package meetingsvc

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
	"github.com/trezcool/mwalimu/core/schedule"
)

var nonAlphaNum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// roomService builds meeting links on a Jitsi-like server where any room name is a meeting.
type roomService struct {
	baseURL *url.URL
	appName string
}

var _ schedule.MeetingService = (*roomService)(nil)

func NewRoomService(conf *core.Config) (schedule.MeetingService, error) {
	u, err := url.Parse(conf.Meeting.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid meeting base URL %q", conf.Meeting.BaseURL)
	}
	return &roomService{baseURL: u, appName: conf.AppName}, nil
}

// CreateMeeting returns a stable link per schedule: <base>/<App>-<Title>-<schedule id>.
func (svc *roomService) CreateMeeting(_ context.Context, req schedule.MeetingRequest) (string, error) {
	if req.ScheduleID == "" {
		return "", errors.New("meeting request without schedule")
	}
	parts := []string{svc.appName, req.Title, req.Start.Format("20060102-1504"), req.ScheduleID}
	for i, p := range parts {
		parts[i] = nonAlphaNum.ReplaceAllString(p, "")
	}

	u := *svc.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.Join(parts, "-")
	return u.String(), nil
}
