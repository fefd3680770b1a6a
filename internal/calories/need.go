// Package calories computes a subscriber's daily energy need, splits it
// over the meals of a day and sizes catalog meals to those targets.
package calories

import (
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// Profile holds the physiological inputs. Nil means "not provided"; a zero
// goal is a valid maintenance goal.
type Profile struct {
	Weight        *float64
	Height        *float64
	Age           *int
	Gender        *enums.Gender
	ActivityLevel *float64
	Goal          *float64
}

func ProfileOf(s *models.Subscriber) Profile {
	if s == nil {
		return Profile{}
	}
	return Profile{
		Weight:        s.Weight,
		Height:        s.Height,
		Age:           s.Age,
		Gender:        s.Gender,
		ActivityLevel: s.ActivityLevel,
		Goal:          s.Goal,
	}
}

func (p Profile) complete() bool {
	return p.Weight != nil && p.Height != nil && p.Age != nil &&
		p.Gender != nil && *p.Gender != "" && p.ActivityLevel != nil && p.Goal != nil
}

// BMR is the Mifflin-St Jeor basal metabolic rate.
func BMR(weight, height float64, age int, gender enums.Gender) float64 {
	bmr := 10*weight + 6.25*height - 5*float64(age)
	if gender == enums.GenderMale {
		return bmr + 5
	}
	return bmr - 161
}

// CalorieNeed returns BMR x activity level + goal, or false when any input
// is missing.
func CalorieNeed(p Profile) (float64, bool) {
	if !p.complete() {
		return 0, false
	}
	return BMR(*p.Weight, *p.Height, *p.Age, *p.Gender)*(*p.ActivityLevel) + *p.Goal, true
}
