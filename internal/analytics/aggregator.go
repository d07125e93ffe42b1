// Package analytics derives dashboard figures from the lead collection on demand.
package analytics

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/crystalcare-intake/internal/leads"
)

// WindowDays is the length of the trailing daily activity series.
const WindowDays = 7

const isoDate = "2006-01-02"

// LeadLister is the read side of the lead store.
type LeadLister interface {
	List(ctx context.Context) []leads.Lead
}

// DailyCount is one bucket of the activity series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ServiceShare is a service's slice of the total, for percentage bars.
type ServiceShare struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// Snapshot is recomputed on every call and never stored.
type Snapshot struct {
	TotalLeads     int            `json:"totalLeads"`
	LeadsByService map[string]int `json:"leadsByService"`
	DailyActivity  []DailyCount   `json:"dailyActivity"`
	NewLeads       int            `json:"newLeads"`
	BySource       map[string]int `json:"bySource"`
	ServiceShares  []ServiceShare `json:"serviceShares"`
}

// Aggregator computes snapshots over a lead lister.
type Aggregator struct {
	leads LeadLister
	now   func() time.Time
}

// NewAggregator builds an aggregator. A nil clock uses time.Now.
func NewAggregator(lister LeadLister, now func() time.Time) *Aggregator {
	if lister == nil {
		panic("analytics: lead lister required")
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{leads: lister, now: now}
}

// Compute reads the current collection and aggregates it.
func (a *Aggregator) Compute(ctx context.Context) Snapshot {
	return Summarize(a.leads.List(ctx), a.now())
}

// Summarize is the pure aggregation behind Compute.
func Summarize(all []leads.Lead, now time.Time) Snapshot {
	snap := Snapshot{
		TotalLeads:     len(all),
		LeadsByService: map[string]int{},
		BySource:       map[string]int{},
		DailyActivity:  make([]DailyCount, 0, WindowDays),
		ServiceShares:  []ServiceShare{},
	}

	perDay := map[string]int{}
	for _, lead := range all {
		service := strings.TrimSpace(lead.Service)
		if service == "" {
			service = leads.DefaultService
		}
		snap.LeadsByService[service]++
		snap.BySource[string(lead.Source)]++
		if lead.Status == leads.StatusNew {
			snap.NewLeads++
		}
		// Day bucket is the ISO date prefix in the record's own zone.
		perDay[lead.Date.Format(isoDate)]++
	}

	today := now.UTC()
	for i := WindowDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(isoDate)
		snap.DailyActivity = append(snap.DailyActivity, DailyCount{Date: day, Count: perDay[day]})
	}

	for service, count := range snap.LeadsByService {
		snap.ServiceShares = append(snap.ServiceShares, ServiceShare{
			Service: service,
			Count:   count,
			Percent: Percent(count, snap.TotalLeads),
		})
	}
	sort.Slice(snap.ServiceShares, func(i, j int) bool {
		if snap.ServiceShares[i].Count != snap.ServiceShares[j].Count {
			return snap.ServiceShares[i].Count > snap.ServiceShares[j].Count
		}
		return snap.ServiceShares[i].Service < snap.ServiceShares[j].Service
	})

	return snap
}

// Percent returns the rounded share of part in total, 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}
