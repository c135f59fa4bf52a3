package agents

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/agentforge/api/schemas"
)

func parserPrompt(text string) string {
	return fmt.Sprintf(`You are a requirements parser for a language verb conjugator application.

Extract from the user requirements below:
1. Languages to support (e.g. English, Spanish, French)
2. Tenses to support (e.g. present, past, future, imperfect)
3. Persons to support (e.g. first person singular, second person plural)
4. Moods to support (e.g. indicative, subjunctive, imperative)
5. Whether irregular verbs must be handled
6. Any dataset sources mentioned
7. Anything else the user asked for

User requirements:
%s

Return ONLY a JSON object with exactly this structure:
{
  "languages": ["..."],
  "tenses": ["..."],
  "persons": ["..."],
  "moods": ["..."],
  "handle_irregular": true,
  "dataset_sources": ["..."],
  "additional_requirements": "..."
}

Where the user is silent, choose reasonable defaults for a verb conjugator.`, text)
}

func designPrompt(spec schemas.RequirementSpec) string {
	return fmt.Sprintf(`You are a software architect designing a language verb conjugator application in Python.

Requirements:
- Languages: %s
- Tenses: %s
- Persons: %s
- Moods: %s
- Handle irregular verbs: %t
- Additional: %s

Describe the module structure, the data schema for conjugations, the Python
dependencies and the implementation approach.

Return ONLY a JSON object:
{
  "architecture": "overall architecture",
  "modules": ["module", "names"],
  "data_schema": {"name": "description"},
  "dependencies": ["python", "packages"],
  "implementation_notes": "key implementation details"
}`,
		strings.Join(spec.Languages, ", "),
		strings.Join(spec.Tenses, ", "),
		strings.Join(spec.Persons, ", "),
		strings.Join(spec.Moods, ", "),
		spec.HandleIrregular,
		spec.AdditionalRequirements,
	)
}

func conjugatorPrompt(spec schemas.RequirementSpec, design schemas.DesignSpec) string {
	return fmt.Sprintf(`You are writing the only implementation of verb_conjugator.py.

It must be valid Python defining:

    class ConjugationError(Exception)
    class VerbConjugator
    def conjugate_verb(language, verb, tense) -> dict

Target the mlconjug3 3.11 API:

    import mlconjug3
    conj = mlconjug3.Conjugator(language="<code>")
    info = conj.conjugate(verb).conjug_info   # {mood: {tense: {pronoun: form}}}

Supported languages: %s. Normalize names and codes case-insensitively
("English", "en" -> "en"; "French", "fr" -> "fr"; "Spanish", "es" -> "es").
Anything else raises ConjugationError("Unsupported language: " + language).

Supported tenses: %s. Normalize with tense.strip().lower(); anything else raises
ConjugationError("Unsupported tense: " + tense).

Persons to return: %s.
Irregular verbs must be handled: %t.

Validate inputs: a non-string verb raises ConjugationError("Verb must be a string"),
an empty verb raises ConjugationError("Verb cannot be empty"), a non-string tense
raises ConjugationError("Tense must be a string"). If any required pronoun is
missing or empty in the mlconjug3 result, raise ConjugationError naming the
missing pronouns, the verb, the tense and the language.

Architecture: %s
Implementation notes: %s

Return ONLY the Python source code for verb_conjugator.py.`,
		strings.Join(spec.Languages, ", "),
		strings.Join(spec.Tenses, ", "),
		strings.Join(spec.Persons, ", "),
		spec.HandleIrregular,
		design.Architecture,
		design.ImplementationNotes,
	)
}

func uiPrompt(spec schemas.RequirementSpec) string {
	return fmt.Sprintf(`Generate a complete Gradio UI in a file named gradio_ui.py for the verb conjugator.

The UI must:
1. Import the public API: from verb_conjugator import conjugate_verb, ConjugationError
2. Build the interface with gr.Blocks.
3. Provide a single-line textbox for the verb, a language dropdown with the
   choices %s, and a tense dropdown with the choices %s.
4. On a button labeled "Conjugate", call conjugate_verb(language, verb, tense.lower())
   and show the returned dict as lines of "Pronoun: form". Catch ConjugationError
   and show its message instead of crashing.
5. Show a "Verb Conjugator" title with brief instructions.
6. Assign the interface to a variable named demo and launch only under
   if __name__ == "__main__": demo.launch()

Use only "import gradio as gr" and the verb_conjugator import at top level.
Return ONLY the Python source code for gradio_ui.py.`,
		strings.Join(spec.Languages, ", "),
		strings.Join(spec.Tenses, ", "),
	)
}

func testPrompt(spec schemas.RequirementSpec, code []schemas.GeneratedCode) string {
	var api string
	for _, gc := range code {
		if gc.Filename == ConjugatorFile {
			api = gc.Code
		}
	}
	return fmt.Sprintf(`You are writing pytest tests for verb_conjugator.py.

The module under test:

%s

Write a single test file named test_conjugator.py that:
1. Starts with:
       import pytest
       from verb_conjugator import conjugate_verb, ConjugationError
2. Contains at least 12 deterministic test functions covering regular verbs,
   irregular verbs (go, be, have, eat), surrounding whitespace, mixed-case
   verbs and tenses, unsupported languages and tenses, empty and non-string
   input, and an unknown verb such as "nonexistentverb".
3. Assumes these tenses exist: %s
4. Uses no randomness and no network calls.

Return ONLY the Python source code for test_conjugator.py.`,
		api,
		strings.Join(spec.Tenses, ", "),
	)
}
