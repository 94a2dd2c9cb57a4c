package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"questforge/models"
)

// Prompt builders for the narrative provider. Every prompt demands a single
// JSON object so responses can go straight through DecodeModelJSON.

func universePrompt(description string) string {
	return fmt.Sprintf(`You are a world builder for an interactive narrative game.
Create a fictional universe based on this description: %s

Respond with a single JSON object, no surrounding text, with exactly these keys:
- "name": a short evocative universe name
- "description": 2-3 sentences describing the universe
- "key_elements": a list of 4-6 short strings naming the defining elements of the universe
- "narrator_voice_description": one sentence describing the narrator's voice for audio rendering
- "main_characters": a list of 4-6 objects, each with keys "name", "role", "description", "image_description" (a visual portrait prompt) and "voice_description"

Use plain double quotes in JSON strings, never doubled quotes.`, description)
}

func questPrompt(universe *models.Universe, theme string, maxQuestions int) string {
	characters, _ := json.Marshal(universe.MainCharacters)

	return fmt.Sprintf(`You are a quest designer for an interactive narrative game.

Universe: %s
Universe description: %s
Key elements: %s
Available characters: %s

Design a quest%s. The quest is played as a sequence of at most %d questions,
each with a few options the player picks from.

Respond with a single JSON object, no surrounding text, with exactly these keys:
- "name": the quest name
- "description": 2-3 sentences describing the quest
- "intro": a short narrated introduction shown to the player before the first question
- "story_outline": a list of %d short strings, one per act of the story, in order
- "main_characters": a list of 2-4 character objects chosen from the available characters, each with keys "name", "role", "description", "image_description" and "voice_description"
- "background_audio_description": one sentence describing the quest's ambient background audio
- "score_categories": a list of exactly 3 objects with keys "name" and "description", the qualities the player is scored on during this quest

Use plain double quotes in JSON strings, never doubled quotes.`,
		universe.Name, universe.Description, strings.Join(universe.KeyElements, ", "),
		characters, themeClause(theme), maxQuestions, maxQuestions)
}

func themeClause(theme string) string {
	if theme == "" {
		return ""
	}
	return fmt.Sprintf(" about: %s", theme)
}

func questionPrompt(universe *models.Universe, quest *models.Quest, categories []models.ScoreCategory, parentQuestion *models.Question, parentOption *models.Option, questionNumber, optionCount int) string {
	characters, _ := json.Marshal(quest.MainCharacters)

	type categoryRef struct {
		ID          uint   `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	refs := make([]categoryRef, 0, len(categories))
	for _, c := range categories {
		refs = append(refs, categoryRef{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	categoryJSON, _ := json.Marshal(refs)

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are narrating an interactive quest.

Universe: %s (%s)
Key elements: %s
Quest: %s
Quest description: %s
Story outline, in order: %s
Characters: %s
Score categories with their ids: %s

`,
		universe.Name, universe.Description, strings.Join(universe.KeyElements, ", "),
		quest.Name, quest.Description,
		strings.Join(quest.StoryOutline, " | "), characters, categoryJSON)

	if parentQuestion == nil {
		sb.WriteString("Write the opening question of the quest.\n")
	} else {
		fmt.Fprintf(&sb, "The previous question was: %q\n", parentQuestion.Text)
		for _, opt := range parentQuestion.Options {
			fmt.Fprintf(&sb, "- option: %q\n", opt.Text)
		}
		fmt.Fprintf(&sb, "The player chose: %q\nWrite the next question, continuing the story from that choice.\n", parentOption.Text)
	}

	fmt.Fprintf(&sb, `This is question number %d of at most %d. Pace the story against the outline accordingly.

Respond with a single JSON object, no surrounding text, with exactly these keys:
- "text": the question posed to the player, at most %d characters
- "characters": a list of names of the characters present in this scene
- "options": a list of exactly %d objects, each with:
  - "text": the option text, at most %d characters
  - "score_rewards": an object mapping score category ids (as strings) to integer deltas between -5 and 5

Use plain double quotes in JSON strings, never doubled quotes.`,
		questionNumber, quest.MaxQuestions, maxQuestionTextLen, optionCount, maxOptionTextLen)

	return sb.String()
}
