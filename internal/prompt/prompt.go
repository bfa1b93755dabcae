// Package prompt asks the operator which environment to migrate and for the
// credentials to reach it.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/fatih/color"

	"github.com/aqasim81/migration-runner/internal/config"
)

// ErrCancelled is returned when the operator interrupts a prompt.
var ErrCancelled = errors.New("prompt cancelled")

// ErrNoEnvironments is returned when there is nothing to select from.
var ErrNoEnvironments = errors.New("no environments configured")

// Prompter collects the operator's choices before connecting.
type Prompter interface {
	SelectEnvironment(envs []config.Environment) (config.Environment, error)
	// ConfirmEnvironment asks the operator to type the environment name and
	// reports whether it matched.
	ConfirmEnvironment(env config.Environment) (bool, error)
	Password(env config.Environment) (string, error)
}

type askFunc func(p survey.Prompt, response any, opts ...survey.AskOpt) error

// Survey is a Prompter backed by interactive terminal prompts.
type Survey struct {
	ask  askFunc
	opts []survey.AskOpt
}

// NewSurvey returns a Survey prompter. opts are passed to every prompt,
// e.g. survey.WithStdio.
func NewSurvey(opts ...survey.AskOpt) *Survey {
	return &Survey{ask: survey.AskOne, opts: opts}
}

// SelectEnvironment lists envs and returns the chosen one.
func (s *Survey) SelectEnvironment(envs []config.Environment) (config.Environment, error) {
	if len(envs) == 0 {
		return config.Environment{}, ErrNoEnvironments
	}

	options := make([]string, len(envs))
	for i, env := range envs {
		options[i] = env.Label()
	}

	q := &survey.Select{
		Message: "Select environment:",
		Options: options,
		Description: func(_ string, index int) string {
			return Paint(envs[index].Color, envs[index].Host+"/"+envs[index].Database)
		},
	}

	var idx int
	if err := s.ask(q, &idx, s.opts...); err != nil {
		return config.Environment{}, mapErr(err)
	}

	if idx < 0 || idx >= len(envs) {
		return config.Environment{}, fmt.Errorf("selected environment index %d out of range", idx)
	}

	return envs[idx], nil
}

// ConfirmEnvironment asks the operator to type env's name.
func (s *Survey) ConfirmEnvironment(env config.Environment) (bool, error) {
	q := &survey.Input{
		Message: fmt.Sprintf("You are about to migrate %s. Type %q to continue:",
			Paint(env.Color, strings.ToUpper(env.Label())), env.Name),
	}

	var typed string
	if err := s.ask(q, &typed, s.opts...); err != nil {
		return false, mapErr(err)
	}

	return Confirmed(typed, env.Name), nil
}

// Password asks for the database password of env without echoing it.
func (s *Survey) Password(env config.Environment) (string, error) {
	msg := "Database password:"
	if env.User != "" {
		msg = fmt.Sprintf("Password for %s@%s:", env.User, env.Host)
	}

	var password string
	if err := s.ask(&survey.Password{Message: msg}, &password, s.opts...); err != nil {
		return "", mapErr(err)
	}

	return password, nil
}

// Confirmed reports whether typed matches name, ignoring surrounding spaces.
func Confirmed(typed, name string) bool {
	return strings.TrimSpace(typed) == name
}

// Paint colors s with the named color. Unknown names leave s unchanged.
func Paint(name, s string) string {
	c := colorFor(name)
	if c == nil {
		return s
	}

	return c.Sprint(s)
}

func colorFor(name string) *color.Color {
	switch strings.ToLower(name) {
	case "green":
		return color.New(color.FgGreen, color.Bold)
	case "yellow":
		return color.New(color.FgYellow, color.Bold)
	case "red":
		return color.New(color.FgRed, color.Bold)
	case "blue":
		return color.New(color.FgBlue, color.Bold)
	case "cyan":
		return color.New(color.FgCyan, color.Bold)
	case "magenta":
		return color.New(color.FgMagenta, color.Bold)
	default:
		return nil
	}
}

func mapErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrCancelled
	}

	return fmt.Errorf("prompt: %w", err)
}
