package advisor

import (
	"fmt"

	"github.com/lox/nutrisense/internal/soil"
)

// Task selects the kind of advice requested.
type Task string

const (
	TaskSummary    Task = "summary"
	TaskCrops      Task = "crop-suggestion"
	TaskFertilizer Task = "fertilizer-plan"
	TaskIrrigation Task = "irrigation-plan"
)

// Tasks lists every supported task.
var Tasks = []Task{TaskSummary, TaskCrops, TaskFertilizer, TaskIrrigation}

// ParseTask validates a task token.
func ParseTask(s string) (Task, error) {
	for _, t := range Tasks {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown recommendation task %q", s)
}

const systemPrompt = "You are an agricultural expert. Provide practical advice for Indian farmers in simple language."

var taskInstructions = map[Task]string{
	TaskSummary:    "Provide: 1) Overall condition 2) Main concerns 3) Top 3 actions. Keep brief.",
	TaskCrops:      "Suggest TOP 5 suitable crops with reasons. Include Indian varieties.",
	TaskFertilizer: "Provide: NPK ratio, kg/hectare, timing, organic alternatives.",
	TaskIrrigation: "Provide: frequency, water amount, best timing for irrigation.",
}

// BuildPrompt renders the user prompt for a reading and task.
func BuildPrompt(r soil.Reading, task Task, location string) string {
	header := "Soil Data"
	if location != "" {
		header += " - " + location
	}
	base := fmt.Sprintf("%s:\npH: %.2f, EC: %.2f dS/m, Moisture: %.1f%%\nN: %.2f, P: %.2f, K: %.2f mg/kg\nMicrobial: %.2f/10, Temp: %.1f°C",
		header, r.PH, r.EC, r.Moisture, r.Nitrogen, r.Phosphorus, r.Potassium, r.Microbial, r.Temperature)

	instr, ok := taskInstructions[task]
	if !ok {
		return base
	}
	return base + "\n\n" + instr
}
