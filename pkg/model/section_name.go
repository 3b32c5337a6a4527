package model

// SectionName is one of the canonical track-timing checkpoints.
type SectionName string

const (
	SectionIM1a SectionName = "IM1a"
	SectionIM1  SectionName = "IM1"
	SectionIM2a SectionName = "IM2a"
	SectionIM2  SectionName = "IM2"
	SectionIM3a SectionName = "IM3a"
	SectionFL   SectionName = "FL"
)

// SectionOrder is the fixed canonical sequence of sections within a lap.
var SectionOrder = []SectionName{
	SectionIM1a, SectionIM1, SectionIM2a, SectionIM2, SectionIM3a, SectionFL,
}

func (s SectionName) Valid() bool {
	for _, name := range SectionOrder {
		if s == name {
			return true
		}
	}
	return false
}
