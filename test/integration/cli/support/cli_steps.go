package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/flatscan/cmd/flatscan/cmd"
	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/scanerr"
	"github.com/MeKo-Tech/flatscan/internal/testutil"
)

// splitArgs splits a command line on spaces, keeping single-quoted parts
// together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range line {
		switch {
		case r == '\'':
			quoted = !quoted
			pending = true
		case r == ' ' && !quoted:
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if pending {
		args = append(args, cur.String())
	}
	return args, nil
}

// aPhotoOfTheScenario renders a reference photo into the temp directory.
func (testCtx *TestContext) aPhotoOfTheScenario(name string) error {
	for _, s := range testutil.Scenarios() {
		if s.Name != name {
			continue
		}
		path := testCtx.Path(s.Name + ".png")
		data, err := codec.Encode(s.Render(), codec.EncodeOptions{Format: codec.PNG})
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return err
		}
		testCtx.Scenario = &s
		testCtx.Image = path
		return nil
	}
	return fmt.Errorf("unknown scenario %q", name)
}

// aTestImage writes a gradient image of the given size.
func (testCtx *TestContext) aTestImage(width, height int) error {
	path := testCtx.Path(fmt.Sprintf("gradient_%dx%d.png", width, height))
	data, err := codec.Encode(testutil.Gradient(width, height), codec.EncodeOptions{Format: codec.PNG})
	if err != nil {
		return err
	}
	testCtx.Image = path
	return os.WriteFile(path, data, 0o600)
}

// aFileContaining writes raw content to a file in the temp directory.
func (testCtx *TestContext) aFileContaining(name string, content *godog.DocString) error {
	path := testCtx.Path(name)
	if strings.HasSuffix(name, ".png") || strings.HasSuffix(name, ".jpg") {
		testCtx.Image = path
	}
	return os.WriteFile(path, []byte(content.Content), 0o600)
}

// theEnvironmentVariableIsSetTo sets a variable for the rest of the scenario.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	return testCtx.SetEnv(name, testCtx.substitute(value))
}

// iRunFlatscan executes the CLI in-process and records the outcome.
func (testCtx *TestContext) iRunFlatscan(line string) error {
	line = testCtx.substitute(line)
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	testCtx.LastCommand = "flatscan " + line

	root := cmd.NewRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err = root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command %q failed: %w\nOutput: %s", testCtx.LastCommand, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substitute(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the output is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}
	if !strings.Contains(testCtx.LastError.Error(), errorText) {
		return fmt.Errorf("error does not mention '%s': %v", errorText, testCtx.LastError)
	}
	return nil
}

// theErrorKindShouldBe verifies the category of the last error.
func (testCtx *TestContext) theErrorKindShouldBe(kind string) error {
	if testCtx.LastError == nil {
		return errors.New("no error occurred")
	}
	if got := scanerr.KindOf(testCtx.LastError).String(); got != kind {
		return fmt.Errorf("error kind is %q, want %q: %v", got, kind, testCtx.LastError)
	}
	return nil
}

// theFileShouldExist verifies a file was created.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.Path(testCtx.substitute(name))); err != nil {
		return fmt.Errorf("expected file %s: %w", name, err)
	}
	return nil
}

// theFileShouldBeAnImageOf decodes a file and checks its format and size.
func (testCtx *TestContext) theFileShouldBeAnImageOf(name, format string, width, height int) error {
	data, err := os.ReadFile(testCtx.Path(testCtx.substitute(name)))
	if err != nil {
		return err
	}
	d, err := codec.Decode(data, "")
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	if string(d.Format) != format {
		return fmt.Errorf("%s is %s, want %s", name, d.Format, format)
	}
	if d.Width != width || d.Height != height {
		return fmt.Errorf("%s is %dx%d, want %dx%d", name, d.Width, d.Height, width, height)
	}
	return nil
}

// RegisterCLISteps registers the command line step definitions.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	// Fixtures
	sc.Step(`^a photo of the "([^"]*)" scenario$`, testCtx.aPhotoOfTheScenario)
	sc.Step(`^a (\d+)x(\d+) test image$`, testCtx.aTestImage)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	// Execution
	sc.Step(`^I run flatscan "([^"]*)"$`, testCtx.iRunFlatscan)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the error kind should be "([^"]*)"$`, testCtx.theErrorKindShouldBe)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should be a (\w+) image of (\d+)x(\d+)$`, testCtx.theFileShouldBeAnImageOf)
}
