package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"patientboard/internal/board"
	"patientboard/internal/model"
)

func modalBodyWidth(width int) int {
	w := width - 10
	if w > 72 {
		w = 72
	}
	if w < 20 {
		w = 20
	}
	return w
}

func modalBox(width int, content string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Width(modalBodyWidth(width)).
		Render(content)
}

func renderConfirmModal(width int, title, body, confirmLabel, cancelLabel string) string {
	// No borders on the buttons: nested borders inside a modal leave artifacts on some terminals.
	btn := lipgloss.NewStyle().Padding(0, 1).Foreground(colorSurfaceFg).Background(colorControlBg)
	active := btn.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	controls := lipgloss.JoinHorizontal(lipgloss.Top, active.Render(confirmLabel), " ", btn.Render(cancelLabel))
	help := styleMuted().Render("enter/y: confirm   esc: cancel")
	return modalBox(width, strings.Join([]string{styleHeading().Render(title), "", body, "", controls, "", help}, "\n"))
}

// dischargeChoices are the categories offered on discharge, in cycling order.
var dischargeChoices = append(append([]string{}, model.Categories[1:]...), model.CategoryUnfollow)

func cycleCategory(current string, delta int) string {
	idx := 0
	for i, c := range dischargeChoices {
		if c == current {
			idx = i
			break
		}
	}
	n := len(dischargeChoices)
	return dischargeChoices[(idx+delta+n)%n]
}

func renderDischargeModal(width int, p *model.Patient, order *board.DischargeOrder) string {
	name := p.Demographics().Name
	if name == "" {
		name = "this patient"
	}
	var opts []string
	for _, c := range dischargeChoices {
		if c == order.Category {
			opts = append(opts, styleSelected().Render(" "+c+" "))
		} else {
			opts = append(opts, styleMuted().Render(" "+c+" "))
		}
	}
	body := "Discharge " + name + " on " + order.Date + "\n\n" + strings.Join(opts, "")
	if order.Category == model.CategoryUnfollow {
		body += "\n\n" + styleMuted().Render("Removes the patient from this list only.")
	}
	btn := lipgloss.NewStyle().Padding(0, 1).Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	help := styleMuted().Render("←/→: category   enter: discharge   esc: cancel")
	return modalBox(width, strings.Join([]string{styleHeading().Render("Discharge"), "", body, "", btn.Render("Discharge"), "", help}, "\n"))
}
