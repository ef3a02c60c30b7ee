package store

import (
	"sort"
	"time"

	"github.com/rohzyy/govai/internal/lifecycle"
)

func breached(row AnalyticsRow, now time.Time) bool {
	if row.SLADeadline == nil {
		return false
	}
	return lifecycle.IsBreached(*row.SLADeadline, lifecycle.Status(row.Status), now)
}

func resolved(row AnalyticsRow) bool {
	s := lifecycle.Status(row.Status)
	return s == lifecycle.StatusResolved || s == lifecycle.StatusVerified
}

// ComputeStats summarises rows for the admin dashboard. Resolved today is
// measured against now's UTC calendar day.
func ComputeStats(rows []AnalyticsRow, now time.Time) Stats {
	stats := Stats{ByStatus: make(map[string]int)}
	y, m, d := now.UTC().Date()
	for _, row := range rows {
		stats.Total++
		stats.ByStatus[row.Status]++
		if row.OfficerID == "" {
			stats.Unassigned++
		}
		if breached(row, now) {
			stats.SLABreached++
		}
		if row.ResolvedAt != nil {
			ry, rm, rd := row.ResolvedAt.UTC().Date()
			if ry == y && rm == m && rd == d {
				stats.ResolvedToday++
			}
		}
	}
	return stats
}

func ComputeDepartmentStats(rows []AnalyticsRow, now time.Time) []DepartmentStat {
	byDept := make(map[string]*DepartmentStat)
	for _, row := range rows {
		stat, ok := byDept[row.Department]
		if !ok {
			stat = &DepartmentStat{Department: row.Department}
			byDept[row.Department] = stat
		}
		stat.Total++
		if resolved(row) {
			stat.Resolved++
		}
		if breached(row, now) {
			stat.Breached++
		}
	}
	out := make([]DepartmentStat, 0, len(byDept))
	for _, stat := range byDept {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Department < out[j].Department
	})
	return out
}

// ComputeTrends buckets submissions and resolutions into the last months
// calendar months, oldest first, ending with now's month.
func ComputeTrends(rows []AnalyticsRow, now time.Time, months int) []TrendPoint {
	if months <= 0 {
		months = 6
	}
	start := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	points := make([]TrendPoint, months)
	index := make(map[string]int, months)
	for i := range points {
		key := start.AddDate(0, i, 0).Format("2006-01")
		points[i].Month = key
		index[key] = i
	}
	for _, row := range rows {
		if i, ok := index[row.CreatedAt.UTC().Format("2006-01")]; ok {
			points[i].Submitted++
		}
		if row.ResolvedAt != nil {
			if i, ok := index[row.ResolvedAt.UTC().Format("2006-01")]; ok {
				points[i].Resolved++
			}
		}
	}
	return points
}

// ComputeOfficerPerformance reports every officer, including ones with no
// grievances, ordered by resolved count.
func ComputeOfficerPerformance(rows []AnalyticsRow, officers []lifecycle.Officer, now time.Time) []OfficerPerformance {
	type acc struct {
		perf    OfficerPerformance
		ratings int
		sum     int
	}
	byOfficer := make(map[string]*acc, len(officers))
	order := make([]string, 0, len(officers))
	for _, o := range officers {
		byOfficer[o.ID] = &acc{perf: OfficerPerformance{OfficerID: o.ID, Name: o.Name}}
		order = append(order, o.ID)
	}
	for _, row := range rows {
		a, ok := byOfficer[row.OfficerID]
		if !ok {
			continue
		}
		a.perf.Assigned++
		if resolved(row) {
			a.perf.Resolved++
		}
		if breached(row, now) {
			a.perf.Breached++
		}
		if row.Rating != nil {
			a.ratings++
			a.sum += *row.Rating
		}
	}
	out := make([]OfficerPerformance, 0, len(order))
	for _, id := range order {
		a := byOfficer[id]
		if a.ratings > 0 {
			a.perf.AvgRating = float64(a.sum) / float64(a.ratings)
		}
		out = append(out, a.perf)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Resolved > out[j].Resolved })
	return out
}
