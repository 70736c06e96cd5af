package service

import (
	"math"
	"sort"
)

// MarkEntry is a student's raw marks.
type MarkEntry struct {
	StudentID uint
	Marks     float64
}

// RankedEntry is a mark entry with its derived rank, percentage and grade.
type RankedEntry struct {
	StudentID  uint
	Marks      float64
	Rank       int
	Percentage float64
	Grade      string
}

type gradeBand struct {
	min   float64
	grade string
}

var gradeBands = []gradeBand{
	{90, "A+"},
	{80, "A"},
	{70, "B+"},
	{60, "B"},
	{50, "C"},
	{40, "D"},
}

// GradeFor maps a percentage to its letter grade. Lower bounds are inclusive.
func GradeFor(percentage float64) string {
	for _, band := range gradeBands {
		if percentage >= band.min {
			return band.grade
		}
	}
	return "F"
}

// RankResults orders entries by marks descending and derives rank, percentage and grade.
// Ties keep their input order and still receive distinct sequential ranks.
func RankResults(entries []MarkEntry, totalMarks float64) []RankedEntry {
	ordered := make([]MarkEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Marks > ordered[j].Marks
	})

	ranked := make([]RankedEntry, 0, len(ordered))
	for i, entry := range ordered {
		percentage := 0.0
		if totalMarks > 0 {
			percentage = round2(entry.Marks / totalMarks * 100)
		}
		ranked = append(ranked, RankedEntry{
			StudentID:  entry.StudentID,
			Marks:      entry.Marks,
			Rank:       i + 1,
			Percentage: percentage,
			Grade:      GradeFor(percentage),
		})
	}
	return ranked
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
