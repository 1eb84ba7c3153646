package dashboard

import "time"

type ClubOption struct {
	ID   int64
	Name string
}

type PointsBreakdown struct {
	Placement     int64 `json:"placement"`
	Participation int64 `json:"participation"`
	Awards        int64 `json:"awards"`
	Deductions    int64 `json:"deductions"`
}

type RecentEntry struct {
	Date      time.Time `json:"date"`
	EventName string    `json:"eventName,omitempty"`
	Category  string    `json:"category"`
	Points    int64     `json:"points"`
	Reason    string    `json:"reason"`
}

type AttendanceSummary struct {
	EventID   int64     `json:"eventId"`
	EventName string    `json:"eventName"`
	EventDate time.Time `json:"eventDate"`
	Attended  int64     `json:"attended"`
	Eligible  int64     `json:"eligible"`
	Percent   float64   `json:"percent"`
}

type DashboardData struct {
	ClubID           int64               `json:"clubId"`
	ClubName         string              `json:"clubName"`
	SeasonID         int64               `json:"seasonId"`
	SeasonName       string              `json:"seasonName"`
	Rank             int                 `json:"rank"`
	ClubCount        int                 `json:"clubCount"`
	Total            int64               `json:"total"`
	Breakdown        PointsBreakdown     `json:"breakdown"`
	RecentEntries    []RecentEntry       `json:"recentEntries"`
	Attendance       []AttendanceSummary `json:"attendance"`
	Clubs            []ClubOption        `json:"-"`
	ShowClubSelector bool                `json:"-"`
}
