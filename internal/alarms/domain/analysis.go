package alarms

import "sort"

// StatusCount is one bar of the status distribution chart.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// CauseCount is the raw number of alarms for a measurement/type pair.
type CauseCount struct {
	MeasurementName string `json:"measurement_name"`
	AlarmType       string `json:"alarm_type"`
	Count           int64  `json:"count"`
}

// ParetoEntry is one bar of the Pareto chart, shares in percent.
type ParetoEntry struct {
	Cause           string  `json:"cause"`
	MeasurementName string  `json:"measurement_name"`
	AlarmType       string  `json:"alarm_type"`
	Count           int64   `json:"count"`
	Share           float64 `json:"share"`
	Cumulative      float64 `json:"cumulative"`
}

// BuildPareto sorts causes by count descending and accumulates shares.
// Zero counts are dropped.
func BuildPareto(counts []CauseCount) []ParetoEntry {
	entries := make([]ParetoEntry, 0, len(counts))
	var total int64
	for _, c := range counts {
		if c.Count <= 0 {
			continue
		}
		total += c.Count
		entries = append(entries, ParetoEntry{
			Cause:           CauseLabel(c.MeasurementName, c.AlarmType),
			MeasurementName: c.MeasurementName,
			AlarmType:       c.AlarmType,
			Count:           c.Count,
		})
	}
	if total == 0 {
		return entries
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Cause < entries[j].Cause
	})
	var running int64
	for i := range entries {
		running += entries[i].Count
		entries[i].Share = float64(entries[i].Count) / float64(total) * 100
		entries[i].Cumulative = float64(running) / float64(total) * 100
	}
	return entries
}

// CompleteDistribution returns one entry per known status, in lifecycle
// order, followed by any unknown labels found in the table.
func CompleteDistribution(counts []StatusCount) []StatusCount {
	byStatus := make(map[Status]int64, len(counts))
	var unknown []StatusCount
	for _, c := range counts {
		status, ok := ParseStatus(string(c.Status))
		if !ok {
			unknown = append(unknown, c)
			continue
		}
		byStatus[status] += c.Count
	}
	result := make([]StatusCount, 0, len(Statuses())+len(unknown))
	for _, status := range Statuses() {
		result = append(result, StatusCount{Status: status, Count: byStatus[status]})
	}
	sort.SliceStable(unknown, func(i, j int) bool { return unknown[i].Status < unknown[j].Status })
	return append(result, unknown...)
}
