package main

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
)

// QuestionProvider is the boundary with the external asset collaborator:
// it exposes the available question references and nothing else.
type QuestionProvider interface {
	Questions() []Question
}

type staticQuestions struct {
	questions []Question
}

func (s *staticQuestions) Questions() []Question {
	return s.questions
}

// builtinQuestions lets the binary run without --questions-dir. The refs
// are opaque paths resolved by whatever serves the assets.
func builtinQuestions() QuestionProvider {
	questions := make([]Question, 0, 12)
	for i := 1; i <= 12; i++ {
		id := fmt.Sprintf("q%02d", i)
		questions = append(questions, Question{
			ID:        id,
			PromptRef: "assets/questions/" + id + ".webp",
			AnswerRef: "assets/questions/" + id + "_answer.webp",
		})
	}
	return &staticQuestions{questions: questions}
}

const answerSuffix = "_answer"

// loadQuestionDir pairs every `<name>.<ext>` in dir with its
// `<name>_answer.<ext>` counterpart. Files without a counterpart are
// skipped. The refs handed out are dir-relative paths.
func loadQuestionDir(dir string) (QuestionProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	answers := make(map[string]string)
	prompts := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)

		if base, ok := strings.CutSuffix(stem, answerSuffix); ok {
			answers[base] = name
		} else {
			prompts[stem] = name
		}
	}

	ids := make([]string, 0, len(prompts))
	for id := range prompts {
		if _, ok := answers[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	questions := make([]Question, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, Question{
			ID:        id,
			PromptRef: path.Join(dir, prompts[id]),
			AnswerRef: path.Join(dir, answers[id]),
		})
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no question/answer pairs found in %s", dir)
	}

	return &staticQuestions{questions: questions}, nil
}

func newQuestionProvider(cfg *Config) (QuestionProvider, error) {
	if cfg.questionsDir == "" {
		return builtinQuestions(), nil
	}
	return loadQuestionDir(cfg.questionsDir)
}
