package generator

import (
	"FactVerse/backend/go/internal/models"
	"fmt"
)

var categoryPrompts = map[models.Category]string{
	models.CategoryScience:     "Generate an interesting and verified scientific fact about",
	models.CategoryHistory:     "Share a fascinating historical fact about",
	models.CategoryNature:      "Tell me an amazing fact about nature and",
	models.CategorySpace:       "Provide an incredible space or astronomy fact about",
	models.CategoryTechnology:  "Generate a cool technology fact about",
	models.CategoryAnimals:     "Share an interesting animal fact about",
	models.CategoryGeography:   "Tell me a geographical fact about",
	models.CategoryCulture:     "Provide a cultural fact about",
	models.CategoryMathematics: "Generate a mathematical fact about",
	models.CategoryFood:        "Share an interesting food fact about",
	models.CategoryGeneral:     "Generate an interesting and educational fact about",
}

var difficultyContexts = map[models.Difficulty]string{
	models.DifficultyEasy:   "suitable for children and beginners",
	models.DifficultyMedium: "appropriate for general audiences",
	models.DifficultyHard:   "detailed and complex for advanced learners",
}

// ShortPrompt is the compact prompt used for the primary backend.
func ShortPrompt(category models.Category, difficulty models.Difficulty) string {
	lead, ok := categoryPrompts[category]
	if !ok {
		lead = categoryPrompts[models.CategoryGeneral]
	}
	ctx, ok := difficultyContexts[difficulty]
	if !ok {
		ctx = difficultyContexts[models.DifficultyMedium]
	}
	return fmt.Sprintf("%s %s. The fact should be %s. Please provide a single, interesting, and verified fact (2-3 sentences maximum):",
		lead, category, ctx)
}

// DetailedPrompt is the instruction-style prompt used for the secondary backend.
func DetailedPrompt(category models.Category, difficulty models.Difficulty) string {
	return fmt.Sprintf(`Generate a fascinating and educational fact about %s.

Requirements:
- Difficulty level: %s
- Length: 2-3 sentences
- Must be factually accurate and verifiable
- Include an interesting detail that most people don't know
- Make it engaging and memorable

Please provide only the fact text, no additional explanation.`, category, difficulty)
}
