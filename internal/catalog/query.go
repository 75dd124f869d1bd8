// Package catalog turns user criteria into catalog queries and fetches
// matching problem catalogs from the remote catalog service.
package catalog

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// SkillLevel is the user's self-assessed proficiency.
type SkillLevel string

const (
	Beginner     SkillLevel = "Beginner"
	Intermediate SkillLevel = "Intermediate"
	Advanced     SkillLevel = "Advanced"
	Master       SkillLevel = "Master"
)

// Skills lists every skill level from least to most experienced.
var Skills = []SkillLevel{Beginner, Intermediate, Advanced, Master}

// ParseSkill parses s case-insensitively into its canonical SkillLevel.
func ParseSkill(s string) (SkillLevel, bool) {
	s = strings.TrimSpace(s)
	for _, lvl := range Skills {
		if strings.EqualFold(s, string(lvl)) {
			return lvl, true
		}
	}
	return "", false
}

func (s SkillLevel) String() string { return string(s) }

// Reason classifies a ValidationError.
type Reason int

const (
	MissingSkill Reason = iota + 1
	UnknownSkill
)

// ValidationError rejects criteria before any request is made.
type ValidationError struct {
	Reason Reason
	Value  string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case MissingSkill:
		return "skill level is required"
	case UnknownSkill:
		return fmt.Sprintf("unknown skill level %q (want one of %s)", e.Value, skillList())
	default:
		return "invalid criteria"
	}
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrMissingSkill = &ValidationError{Reason: MissingSkill}
	ErrUnknownSkill = &ValidationError{Reason: UnknownSkill}
)

func skillList() string {
	names := make([]string, len(Skills))
	for i, s := range Skills {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// TagSet is an ordered set of topic tags. The first occurrence of a tag
// fixes its position.
type TagSet struct {
	tags []string
}

// NewTagSet builds a set from tags, trimming blanks and dropping duplicates.
func NewTagSet(tags ...string) TagSet {
	var ts TagSet
	for _, t := range tags {
		ts.Add(t)
	}
	return ts
}

// ParseTags splits a comma-separated list into a TagSet.
func ParseTags(raw string) TagSet {
	if strings.TrimSpace(raw) == "" {
		return TagSet{}
	}
	return NewTagSet(strings.Split(raw, ",")...)
}

// Add inserts tag unless it is blank or already present.
func (ts *TagSet) Add(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || slices.Contains(ts.tags, tag) {
		return false
	}
	ts.tags = append(ts.tags, tag)
	return true
}

// Remove deletes tag if present.
func (ts *TagSet) Remove(tag string) {
	if i := slices.Index(ts.tags, strings.TrimSpace(tag)); i >= 0 {
		ts.tags = slices.Delete(ts.tags, i, i+1)
	}
}

// Contains reports whether tag is in the set.
func (ts TagSet) Contains(tag string) bool {
	return slices.Contains(ts.tags, tag)
}

// Len returns the number of tags.
func (ts TagSet) Len() int { return len(ts.tags) }

// Slice returns the tags in insertion order.
func (ts TagSet) Slice() []string { return slices.Clone(ts.tags) }

// String joins the tags with commas, the form used on the wire.
func (ts TagSet) String() string { return strings.Join(ts.tags, ",") }

// Query is a validated catalog request.
type Query struct {
	Skill SkillLevel
	Tags  TagSet
}

// Build validates raw user input into a Query. Tags outside Vocabulary are
// accepted as given.
func Build(skill, rawTags string) (Query, error) {
	if strings.TrimSpace(skill) == "" {
		return Query{}, &ValidationError{Reason: MissingSkill}
	}
	lvl, ok := ParseSkill(skill)
	if !ok {
		return Query{}, &ValidationError{Reason: UnknownSkill, Value: strings.TrimSpace(skill)}
	}
	return Query{Skill: lvl, Tags: ParseTags(rawTags)}, nil
}

// Values encodes q as URL query parameters (skill, tags).
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("skill", string(q.Skill))
	if q.Tags.Len() > 0 {
		v.Set("tags", q.Tags.String())
	}
	return v
}

// ParseQuery is the inverse of Query.Values.
func ParseQuery(v url.Values) (Query, error) {
	return Build(v.Get("skill"), v.Get("tags"))
}
