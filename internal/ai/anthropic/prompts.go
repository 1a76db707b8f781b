package anthropic

import "fmt"

// buildDiagnosisPrompt creates the prompt for appliance fault diagnosis.
// The resourceType controls how the model is told to weigh the attached
// evidence; description is the user's account of the fault.
func buildDiagnosisPrompt(resourceType, description string) string {
	prompt := `You are an expert home appliance repair technician diagnosing a reported fault. Your task is to identify the most likely cause and recommend a fix.

Consider faults across these appliance systems:
1. **Electrical** - Wiring, control boards, switches, motors, heating elements
2. **Water/Drainage** - Pumps, valves, hoses, seals, filters, blockages
3. **Mechanical** - Bearings, belts, drums, hinges, latches, suspension
4. **Refrigeration** - Compressors, condensers, evaporators, refrigerant, thermostats
5. **Gas** - Igniters, burners, valves, ventilation
6. **Controls** - Sensors, timers, display panels, error codes

For each fault you identify:
- Name the affected component specifically
- Describe what is wrong with it
- Assess your confidence: "high" (90%+), "medium" (60-90%), or "low" (30-60%)
- Rate severity: "hazard" (fire, gas, water, or electrical risk - stop using the appliance), "urgent" (unusable or degrading fast), "routine" (repair at convenience), "cosmetic" (no functional impact)
- Suggest a concrete fix and any replacement parts needed

**Important Guidelines:**
- Only report faults the evidence reasonably supports
- Always flag safety risks prominently, even at low confidence
- If the evidence is insufficient for a confident diagnosis, say so and suggest what additional information would help
- Prefer the simplest explanation consistent with the symptoms`

	switch resourceType {
	case "photo":
		prompt += "\n\nA photograph of the appliance is attached. Examine it for visible damage, wear, leaks, corrosion, error codes on displays, and installation problems."
	case "video":
		prompt += "\n\nThe user recorded a video of the fault. The description below summarizes what the video shows, including any sounds and movement."
	case "audio":
		prompt += "\n\nThe user recorded the sound the appliance makes. The description below characterizes the sound (pitch, rhythm, when it occurs)."
	}

	if description != "" {
		prompt += fmt.Sprintf("\n\n**Fault Description from User:**\n%s", description)
	}

	prompt += `

**Response Format:**
Return your diagnosis as a JSON object with this exact structure:

{
  "summary": "One-paragraph plain-language diagnosis",
  "appliance_type": "Type of appliance (e.g. washing machine)",
  "findings": [
    {
      "component": "Affected component",
      "issue": "What is wrong with it",
      "confidence": "high|medium|low",
      "severity": "hazard|urgent|routine|cosmetic",
      "suggested_fix": "Recommended remediation",
      "parts_needed": ["part name or number"]
    }
  ],
  "repair_difficulty": "diy|technician|replace",
  "safety_notes": "Warnings the user should read before acting, or empty string"
}

**Important:** Return ONLY the JSON object, no additional text or explanation.`

	return prompt
}
