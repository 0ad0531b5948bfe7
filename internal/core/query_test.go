package core

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildReportQuery(t *testing.T) {
	user := Identity{ID: "u1", Role: RoleUser}
	admin := Identity{ID: "a1", Role: RoleAdmin}
	march := func(d int) *time.Time {
		v := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
		return &v
	}

	tests := []struct {
		name   string
		id     Identity
		filter ReportFilter
		want   ReportQuery
	}{
		{
			name: "defaults scope to owner",
			id:   user,
			want: ReportQuery{OwnerID: "u1", Sort: SortCreatedAt, Descending: true},
		},
		{
			name: "admin is unscoped",
			id:   admin,
			want: ReportQuery{Sort: SortCreatedAt, Descending: true},
		},
		{
			name: "text filters trimmed",
			id:   user,
			filter: ReportFilter{
				Search: "  login ", Responsible: " ana", Feature: "checkout ", Environment: " qa ",
			},
			want: ReportQuery{
				OwnerID: "u1", Search: "login", Responsible: "ana", Feature: "checkout", Environment: "qa",
				Sort: SortCreatedAt, Descending: true,
			},
		},
		{
			name:   "dates and status",
			id:     user,
			filter: ReportFilter{DateFrom: "2024-03-01", DateTo: "2024-03-31", Status: "fail"},
			want: ReportQuery{
				OwnerID: "u1", DateFrom: march(1), DateTo: march(31), Status: StatusFail,
				Sort: SortCreatedAt, Descending: true,
			},
		},
		{
			name:   "bad dates are dropped",
			id:     user,
			filter: ReportFilter{DateFrom: "01/03/2024", DateTo: "yesterday"},
			want: ReportQuery{
				OwnerID: "u1", Sort: SortCreatedAt, Descending: true,
				Ignored: []string{"date_from=01/03/2024", "date_to=yesterday"},
			},
		},
		{
			name:   "sort whitelisted",
			id:     user,
			filter: ReportFilter{SortBy: "Title", SortOrder: "ASC"},
			want:   ReportQuery{OwnerID: "u1", Sort: SortTitle},
		},
		{
			name:   "unknown sort falls back",
			id:     user,
			filter: ReportFilter{SortBy: "title; DROP TABLE reports", SortOrder: "sideways"},
			want: ReportQuery{
				OwnerID: "u1", Sort: SortCreatedAt, Descending: true,
				Ignored: []string{"sort_by=title; DROP TABLE reports", "sort_order=sideways"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildReportQuery(tt.id, tt.filter)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildReportQuery() =\n%+v\nwant\n%+v", got, tt.want)
			}
		})
	}
}
