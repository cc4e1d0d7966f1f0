// Package scenario models a coaching role-play setup: who the user plays,
// the simulated counterpart's persona, the coaching framework guiding the
// conversation and the session language.
//
// The package renders the setup into provider-facing artifacts: the system
// instruction fixing the AI's role for a session, the prebuilt voice to
// speak with and the scripted opening line.
package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the side of the coaching conversation the user plays. The AI
// always takes the opposite side.
type Role string

const (
	// RoleCoach means the user practices coaching; the AI plays the client.
	RoleCoach Role = "Coach"

	// RoleCoachee means the user seeks coaching; the AI plays the coach.
	RoleCoachee Role = "Coachee"
)

// Framework is the coaching model structuring the conversation.
type Framework string

const (
	FrameworkGROW     Framework = "GROW Model"
	FrameworkOSKAR    Framework = "OSKAR Model"
	FrameworkCLEAR    Framework = "CLEAR Model"
	FrameworkFreeFlow Framework = "Free Flow / General"
)

// IsValid reports whether f is a recognised framework.
func (f Framework) IsValid() bool {
	switch f {
	case FrameworkGROW, FrameworkOSKAR, FrameworkCLEAR, FrameworkFreeFlow:
		return true
	}
	return false
}

// Language is the session language code.
type Language string

const (
	LanguageEN Language = "EN"
	LanguageTH Language = "TH"
	LanguageCN Language = "CN"
)

// IsValid reports whether l is a recognised language code.
func (l Language) IsValid() bool {
	switch l {
	case LanguageEN, LanguageTH, LanguageCN:
		return true
	}
	return false
}

// Mode selects how the user interacts with the simulation.
type Mode string

const (
	// ModeText is turn-based text chat.
	ModeText Mode = "TEXT"

	// ModeVoice is a realtime voice session.
	ModeVoice Mode = "VOICE"
)

// Persona describes the simulated counterpart (when the user coaches) or
// the user's own context (when the user is coached).
type Persona struct {
	Gender     string `json:"gender" yaml:"gender"`
	Age        string `json:"age" yaml:"age"`
	Profession string `json:"profession" yaml:"profession"`
	Position   string `json:"position" yaml:"position"`
	Topic      string `json:"topic" yaml:"topic"`
}

// Scenario is a complete role-play configuration.
type Scenario struct {
	UserRole  Role      `json:"userRole" yaml:"user_role"`
	Persona   Persona   `json:"persona" yaml:"persona"`
	Framework Framework `json:"framework" yaml:"framework"`
	Language  Language  `json:"language" yaml:"language"`
	Mode      Mode      `json:"mode" yaml:"mode"`
}

// Validate reports every problem with the scenario joined into one error.
func (s Scenario) Validate() error {
	var errs []error
	switch s.UserRole {
	case RoleCoach, RoleCoachee:
	default:
		errs = append(errs, fmt.Errorf("scenario: unknown role %q", s.UserRole))
	}
	switch s.Framework {
	case FrameworkGROW, FrameworkOSKAR, FrameworkCLEAR, FrameworkFreeFlow:
	default:
		errs = append(errs, fmt.Errorf("scenario: unknown framework %q", s.Framework))
	}
	switch s.Language {
	case LanguageEN, LanguageTH, LanguageCN:
	default:
		errs = append(errs, fmt.Errorf("scenario: unknown language %q", s.Language))
	}
	switch s.Mode {
	case ModeText, ModeVoice:
	default:
		errs = append(errs, fmt.Errorf("scenario: unknown mode %q", s.Mode))
	}
	if strings.TrimSpace(s.Persona.Topic) == "" {
		errs = append(errs, errors.New("scenario: persona topic must not be empty"))
	}
	return errors.Join(errs...)
}

// Voice selects the prebuilt voice for a live session and an optional tone
// instruction that accompanies it.
//
// When the user coaches, the AI client's voice follows the persona gender;
// the non-binary persona additionally gets an expressive tone directive.
// When the user is coached, the AI coach speaks with the default
// professional voice.
func (s Scenario) Voice() (name, tone string) {
	if s.UserRole != RoleCoach {
		return "Kore", ""
	}
	switch s.Persona.Gender {
	case "Male":
		return "Fenrir", ""
	case "Female":
		return "Kore", ""
	case "Non-binary":
		return "Puck", "Adopt a lively, expressive, sassy tone (channeling a 'Queen' persona). " +
			"Use colorful expressions while remaining realistic to the professional context."
	default:
		return "Kore", ""
	}
}

// LiveInstructions renders the compact system instruction used for realtime
// voice sessions, where brevity keeps the model responsive.
func (s Scenario) LiveInstructions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Speak in %s.\n", s.Language)
	if s.UserRole == RoleCoach {
		_, tone := s.Voice()
		b.WriteString("You are the Coachee.\n")
		fmt.Fprintf(&b, "Role: %s, %s, %s.\n", s.Persona.Gender, s.Persona.Age, s.Persona.Profession)
		fmt.Fprintf(&b, "Topic: %s.\n", s.Persona.Topic)
		if tone != "" {
			b.WriteString(tone)
			b.WriteString("\n")
		}
		b.WriteString("Act realistic, emotional, and concise. Do not talk too much.")
	} else {
		b.WriteString("You are Dr.LiveCoach.\n")
		fmt.Fprintf(&b, "Coach the user on: %s using the %s.\n", s.Persona.Topic, s.Framework)
		b.WriteString("Be professional, warm, and ask one powerful question at a time.")
	}
	return b.String()
}

// ChatInstructions renders the detailed system instruction used for text
// chat, where the model has room for richer behavioural guidance.
func (s Scenario) ChatInstructions() string {
	lang := fmt.Sprintf(
		"IMPORTANT: You MUST converse in the user's selected language: %q.\n"+
			"If the language is TH (Thai), answer in Thai.\n"+
			"If the language is CN (Chinese), answer in Chinese.\n"+
			"If the language is EN (English), answer in English.\n",
		s.Language,
	)

	if s.UserRole == RoleCoach {
		return lang + fmt.Sprintf(`You are participating in a corporate coaching roleplay simulation.

YOUR ROLE:
- You are the CLIENT (Coachee).
- Gender: %s
- Age: %s
- Profession: %s
- Position: %s
- Core Issue/Topic: %q

BEHAVIOR GUIDELINES:
- Do NOT act as an AI. Act strictly as the human persona described above.
- Be realistic. Do not give up all information at once.
- Show appropriate emotions (hesitation, defensiveness, or eagerness) based on the context.
- INTERACTION LOGIC:
  - If the Coach (User) asks clarifying questions or reflects your feelings (Empathy), acknowledge them warmly, lower your defensiveness, and elaborate on your internal thoughts and feelings.
  - If the Coach asks "Why" questions aggressively, become slightly defensive or withdrawn.
  - If the Coach jumps to solutions too early, express hesitation ("I'm not sure if I can do that yet...").
- Keep responses concise (under 3-4 sentences) to simulate real chat.
- Your goal is NOT to guide the conversation, but to respond naturally to the Coach's technique.`,
			s.Persona.Gender, s.Persona.Age, s.Persona.Profession, s.Persona.Position, s.Persona.Topic)
	}

	return lang + fmt.Sprintf(`You are participating in a corporate coaching roleplay simulation.

YOUR ROLE:
- You are "Dr.LiveCoach", an expert Executive Coach.
- You are coaching the User (who is the Client).
- The User's Context: %s, %s.
- The User's Issue: %q.

FRAMEWORK TO USE: %s

BEHAVIOR GUIDELINES:
- Guide the user using the %s framework.
- Ask ONE powerful question at a time.
- Practice active listening (reflect back what the user says).
- Be empathetic, professional, and solution-focused.
- Help the user find their own answers; do not just give advice unless asked or necessary.
- Keep responses concise and impactful.`,
		s.Persona.Profession, s.Persona.Position, s.Persona.Topic, s.Framework, s.Framework)
}

// greetings holds the scripted opening line per language, keyed by the role
// the AI plays.
var greetings = map[Language]map[Role]string{
	LanguageEN: {
		RoleCoach:   "Hello. Thanks for making time. I've been feeling a bit stuck lately.",
		RoleCoachee: "Hello. I'm Dr.LiveCoach. What brings you here today?",
	},
	LanguageTH: {
		RoleCoach:   "สวัสดีครับ/ค่ะ ขอบคุณที่สละเวลามาคุยกัน ช่วงนี้ผม/ฉันรู้สึกติดขัดและอยากขอคำปรึกษา",
		RoleCoachee: "สวัสดีครับ/ค่ะ ผมคือ Dr.LiveCoach วันนี้มีเรื่องอะไรให้ผมช่วยดูแลครับ?",
	},
	LanguageCN: {
		RoleCoach:   "你好。最近我感觉有点停滞不前，想找人聊聊。",
		RoleCoachee: "你好。我是 Dr.LiveCoach。今天有什么我可以帮你的吗？",
	},
}

// Greeting returns the AI's scripted opening line for the scenario. When
// the user coaches, the AI opens as the client; otherwise it opens as the
// coach. Unknown languages fall back to English.
func (s Scenario) Greeting() string {
	byRole, ok := greetings[s.Language]
	if !ok {
		byRole = greetings[LanguageEN]
	}
	return byRole[s.UserRole]
}
