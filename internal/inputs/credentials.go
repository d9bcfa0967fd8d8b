package inputs

import "strings"

// Labels the login bundle is read from.
const (
	LabelUsername = "Username"
	LabelPassword = "Password"
)

// QuestionLabels and AnswerLabels pair up by index.
var (
	QuestionLabels = []string{"Question 1", "Question 2", "Question 3"}
	AnswerLabels   = []string{"Answer 1", "Answer 2", "Answer 3"}
)

// Credentials is the login bundle. It is read-only once built.
type Credentials struct {
	Username string
	Password string
	answers  map[string]string
}

// NewCredentials builds a bundle. Questions are matched ignoring surrounding
// and repeated whitespace.
func NewCredentials(username, password string, answers map[string]string) Credentials {
	c := Credentials{
		Username: username,
		Password: password,
		answers:  make(map[string]string, len(answers)),
	}
	for q, a := range answers {
		c.answers[normalizeQuestion(q)] = a
	}
	return c
}

// Answer looks up the answer to a security question.
func (c Credentials) Answer(question string) (string, bool) {
	a, ok := c.answers[normalizeQuestion(question)]
	return a, ok
}

// Questions returns the number of known questions.
func (c Credentials) Questions() int { return len(c.answers) }

func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
