package session

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/model"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
)

// step is one row of the registration transition table: the prompt shown
// in the state, how an answer is applied and where a valid answer leads.
type step struct {
	prompt  string
	choices []Option
	apply   func(*service.ProfileInput, string) error
	next    State
}

var registrationSteps = map[State]step{
	StateGender: {
		prompt:  "👤 Укажите ваш пол:",
		choices: []Option{{"Мужской", string(model.GenderMale)}, {"Женский", string(model.GenderFemale)}},
		apply: func(p *service.ProfileInput, in string) error {
			v, err := pick(in, map[string]string{"м": "male", "муж": "male", "мужской": "male", "ж": "female", "жен": "female", "женский": "female"})
			if err != nil {
				return err
			}
			p.Gender = model.Gender(v)
			if !p.Gender.Valid() {
				return errChoice
			}
			return nil
		},
		next: StateAge,
	},
	StateAge: {
		prompt: fmt.Sprintf("📅 Сколько вам лет? (%d–%d)", model.MinAge, model.MaxAge),
		apply: func(p *service.ProfileInput, in string) error {
			v, err := intInRange(in, model.MinAge, model.MaxAge, "Возраст")
			p.Age = v
			return err
		},
		next: StateHeight,
	},
	StateHeight: {
		prompt: fmt.Sprintf("📏 Ваш рост в сантиметрах? (%d–%d)", model.MinHeightCM, model.MaxHeightCM),
		apply: func(p *service.ProfileInput, in string) error {
			v, err := intInRange(in, model.MinHeightCM, model.MaxHeightCM, "Рост")
			p.HeightCM = v
			return err
		},
		next: StateWeight,
	},
	StateWeight: {
		prompt: fmt.Sprintf("⚖️ Ваш текущий вес в кг? (%d–%d)", model.MinWeightKG, model.MaxWeightKG),
		apply: func(p *service.ProfileInput, in string) error {
			v, err := weightInRange(in)
			p.WeightKG = v
			return err
		},
		next: StateTargetWeight,
	},
	StateTargetWeight: {
		prompt: fmt.Sprintf("🎯 Желаемый вес в кг? (%d–%d, 0 — без цели)", model.MinWeightKG, model.MaxWeightKG),
		apply: func(p *service.ProfileInput, in string) error {
			if strings.TrimSpace(in) == "0" {
				p.TargetWeightKG = nil
				return nil
			}
			v, err := weightInRange(in)
			if err != nil {
				return err
			}
			p.TargetWeightKG = &v
			return nil
		},
		next: StateGoal,
	},
	StateGoal: {
		prompt: "🏁 Ваша цель:",
		choices: []Option{
			{"📉 Похудеть", string(model.GoalLose)},
			{"⚖️ Поддерживать вес", string(model.GoalMaintain)},
			{"📈 Набрать массу", string(model.GoalGain)},
		},
		apply: func(p *service.ProfileInput, in string) error {
			v, err := pick(in, map[string]string{"похудеть": "lose", "поддерживать вес": "maintain", "поддерживать": "maintain", "набрать массу": "gain", "набрать": "gain"})
			if err != nil {
				return err
			}
			p.Goal = model.Goal(v)
			if !p.Goal.Valid() {
				return errChoice
			}
			return nil
		},
		next: StateActivity,
	},
	StateActivity: {
		prompt: "🏃 Уровень активности:",
		choices: []Option{
			{"🪑 Низкая", string(model.ActivityLow)},
			{"🚶 Средняя", string(model.ActivityModerate)},
			{"🏋️ Высокая", string(model.ActivityHigh)},
		},
		apply: func(p *service.ProfileInput, in string) error {
			v, err := pick(in, map[string]string{"низкая": "low", "средняя": "moderate", "высокая": "high"})
			if err != nil {
				return err
			}
			p.Activity = model.ActivityLevel(v)
			if !p.Activity.Valid() {
				return errChoice
			}
			return nil
		},
		next: StateDone,
	},
}

type inputError string

func (e inputError) Error() string { return string(e) }

const errChoice = inputError("Выберите один из вариантов ниже.")

// pick accepts an option value as is or maps a typed Russian answer onto it.
// Emoji prefixes of button labels are ignored.
func pick(in string, aliases map[string]string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(in))
	v = strings.TrimLeftFunc(v, func(r rune) bool { return r > 0x2000 || r == ' ' })
	if mapped, ok := aliases[v]; ok {
		return mapped, nil
	}
	if v == "" {
		return "", errChoice
	}
	return v, nil
}

func intInRange(in string, lo, hi int, label string) (int, error) {
	fields := strings.Fields(in)
	if len(fields) == 0 {
		return 0, inputError(fmt.Sprintf("%s должен быть числом от %d до %d.", label, lo, hi))
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil || v < lo || v > hi {
		return 0, inputError(fmt.Sprintf("%s должен быть числом от %d до %d.", label, lo, hi))
	}
	return v, nil
}

func weightInRange(in string) (float64, error) {
	msg := inputError(fmt.Sprintf("Вес должен быть числом от %d до %d кг.", model.MinWeightKG, model.MaxWeightKG))
	fields := strings.Fields(in)
	if len(fields) == 0 {
		return 0, msg
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil || !model.ValidWeightKG(v) {
		return 0, msg
	}
	return v, nil
}

// Registration walks a user through the profile questions and stores the
// profile with computed daily targets at the end.
type Registration struct {
	db    *sql.DB
	store *Store
}

func NewRegistration(db *sql.DB, store *Store) *Registration {
	return &Registration{db: db, store: store}
}

// Start opens the flow. A user that already has a profile gets
// service.ErrProfileExists.
func (r *Registration) Start(userID int64) (Reply, error) {
	has, err := service.HasProfile(r.db, userID)
	if err != nil {
		return Reply{}, err
	}
	if has {
		return Reply{}, service.ErrProfileExists
	}
	c := r.store.Begin(userID, KindRegistration, StateGender)
	return promptFor(c.State, "📝 Давайте заполним профиль, чтобы рассчитать дневную норму.\n\n"), nil
}

// Handle applies one answer. Invalid answers re-prompt without advancing.
func (r *Registration) Handle(userID int64, input string) (Reply, error) {
	c, ok := r.store.Get(userID, KindRegistration)
	if !ok {
		return Reply{}, ErrNoSession
	}
	st, ok := registrationSteps[c.State]
	if !ok {
		r.store.End(userID, KindRegistration)
		return Reply{}, fmt.Errorf("registration in unexpected state %s", c.State)
	}

	if err := st.apply(&c.Profile, input); err != nil {
		if ie, ok := err.(inputError); ok {
			return promptFor(c.State, "❌ "+string(ie)+"\n\n"), nil
		}
		return Reply{}, err
	}
	c.State = st.next
	if c.State != StateDone {
		return promptFor(c.State, ""), nil
	}

	r.store.End(userID, KindRegistration)
	p, err := service.CreateProfile(r.db, userID, c.Profile)
	if err != nil {
		return Reply{}, fmt.Errorf("save profile: %w", err)
	}
	return Reply{Text: "✅ Профиль сохранён!", Done: true, Profile: &p}, nil
}

func promptFor(s State, prefix string) Reply {
	st := registrationSteps[s]
	return Reply{Text: prefix + st.prompt, Options: st.choices}
}
