// Package grade maps severity counts to a letter grade.
//
// The score is a fixed weighted sum of the per-severity counts:
//
//	critical=100  high=40  medium=16  low=4  info=1
//
// and the grade is the first band the score fits in. Every weight is
// positive and the bands are fixed, so adding a finding of any severity
// can never improve the grade.
package grade

import "github.com/sentinelscan/sentinel/pkg/analysis"

var weights = map[analysis.Severity]int{
	analysis.Critical: 100,
	analysis.High:     40,
	analysis.Medium:   16,
	analysis.Low:      4,
	analysis.Info:     1,
}

var bands = []struct {
	max   int
	grade string
}{
	{0, "A+"},
	{4, "A"},
	{12, "A-"},
	{25, "B+"},
	{40, "B"},
	{60, "B-"},
	{100, "C+"},
	{160, "C"},
	{250, "C-"},
	{400, "D"},
}

// Grades lists every possible grade from best to worst.
var Grades = []string{"A+", "A", "A-", "B+", "B", "B-", "C+", "C", "C-", "D", "F"}

// Grade computes the letter grade for a severity count vector. An
// empty scan grades A+.
func Grade(counts map[analysis.Severity]int) string {
	score := Score(counts)
	for _, band := range bands {
		if score <= band.max {
			return band.grade
		}
	}
	return "F"
}

// Score exposes the raw weighted score behind the grade.
func Score(counts map[analysis.Severity]int) int {
	score := 0
	for severity, count := range counts {
		if count > 0 {
			score += weights[severity] * count
		}
	}
	return score
}

// Rank returns the position of a grade in Grades; lower is better.
// Unknown grades rank worst.
func Rank(grade string) int {
	for i, g := range Grades {
		if g == grade {
			return i
		}
	}
	return len(Grades)
}
