package planner

import (
	"fmt"
	"strings"

	"github.com/talgya/crisis-grid/internal/agents"
)

// Strategy selects how the language model is prompted.
type Strategy string

const (
	StrategyGreedy      Strategy = "greedy"
	StrategyReact       Strategy = "react"
	StrategyPlanExecute Strategy = "plan_execute"
)

// ParseStrategy accepts the strategy names and their common spellings.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "greedy", "rules":
		return StrategyGreedy, true
	case "react", "":
		return StrategyReact, true
	case "plan_execute", "plan-and-execute", "planexecute":
		return StrategyPlanExecute, true
	}
	return "", false
}

const commandSchema = `{"commands":[{"agent_id":"<id>","type":"move","to":[x,y]},{"agent_id":"<id>","type":"act","action_name":"pickup_survivor|drop_at_hospital|extinguish_fire|clear_rubble|recharge|resupply"}]}`

const reactSystem = `You are a disaster-response planner operating a grid simulation.
Decide only via reasoning about the state you are given. Output STRICT JSON matching:
` + commandSchema + `
Do NOT include any extra keys or text outside JSON for your final answer.`

const reactUser = `Context (JSON):
%s

Allowed actions & schema:
- move -> to: [x,y]
- act  -> action_name in %s

Constraints:
- Prefer rescuing nearby survivors; keep agents safe; respect capacities.
- Medics pick up a survivor on their own cell and drop at a hospital cell.
- Trucks extinguish fire or clear rubble on their own cell; resupply at the depot.
- Drones recharge at the depot when battery is low.
%sReturn ONLY FINAL_JSON for the final message.`

const planExecuteSystem = `You are a planner for a crisis grid world. Plan first in text, then output STRICT FINAL_JSON per schema.`

const planExecuteUser = `High-level instruction:
Draft a short step-by-step plan for the next tick only (brief).
Then produce FINAL_JSON with concrete commands for this tick.

Context:
%s
%s
Schema reminder (STRICT):
` + commandSchema

const repairPrompt = `Your previous reply did not end with a valid FINAL_JSON object containing a "commands" list.
Reply again with ONLY the JSON object, matching:
` + commandSchema

func systemPrompt(s Strategy) string {
	if s == StrategyPlanExecute {
		return planExecuteSystem
	}
	return reactSystem
}

func userPrompt(s Strategy, contextJSON, notes string) string {
	if notes != "" {
		notes = "Notes from the previous tick:\n" + notes + "\n\n"
	}
	if s == StrategyPlanExecute {
		return fmt.Sprintf(planExecuteUser, contextJSON, notes)
	}
	names := make([]string, len(agents.Actions))
	for i, a := range agents.Actions {
		names[i] = string(a)
	}
	return fmt.Sprintf(reactUser, contextJSON, "["+strings.Join(names, ", ")+"]", notes)
}
