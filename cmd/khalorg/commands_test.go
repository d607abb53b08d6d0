package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const meetingOrg = `* Meeting
:PROPERTIES:
:UID: 123
:LOCATION: Office
:ATTENDEES: test@test.com, test2@test.com
:END:
<2023-01-01 Sun 01:00>--<2023-01-01 Sun 02:00>
Some text
`

type recordingRunner struct {
	args   []string
	output string
}

func (r *recordingRunner) Run(_ context.Context, name string, args []string) ([]byte, error) {
	r.args = append([]string{name}, args...)
	return []byte(r.output), nil
}

type testEnv struct {
	runner     *recordingRunner
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("calendar: work\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return &testEnv{runner: &recordingRunner{}, configPath: path}
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
		runner: e.runner,
	}
	cmd := newRootCommand(a)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand(newApp())
	for _, name := range []string{"config", "loglevel", "format", "file"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
	for _, sub := range []string{"new", "list", "export", "ics", "from-ics"} {
		if c, _, err := cmd.Find([]string{sub}); err != nil || c.Name() != sub {
			t.Errorf("missing subcommand %s", sub)
		}
	}
}

func TestNewDryRun(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, meetingOrg, "new", "--dry-run", "Some_calendar")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	want := `khal new -a Some_calendar --attendees test@test.com,test2@test.com --location Office ` +
		`"2023-01-01 01:00" "2023-01-01 02:00" Meeting :: "Some text"` + "\n"
	if out != want {
		t.Errorf("dry run output\n got: %q\nwant: %q", out, want)
	}
	if env.runner.args != nil {
		t.Error("dry run must not run khal")
	}
}

func TestNewRunsKhal(t *testing.T) {
	env := newTestEnv(t)
	env.runner.output = "created\n"

	orgFile := filepath.Join(t.TempDir(), "item.org")
	if err := os.WriteFile(orgFile, []byte(strings.Replace(meetingOrg, "01:00>", "01:00 +1w>", 1)), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "", "--file", orgFile, "new", "--until", "2023-06-01")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if out != "created\n" {
		t.Errorf("khal stdout must pass through verbatim, got %q", out)
	}
	want := []string{
		"khal", "new", "-a", "work",
		"--attendees", "test@test.com,test2@test.com",
		"--location", "Office",
		"--repeat", "weekly",
		"--until", "2023-06-01",
		"2023-01-01 01:00", "2023-01-01 02:00", "Meeting", "::", "Some text",
	}
	if diff := cmp.Diff(want, env.runner.args); diff != "" {
		t.Errorf("khal args (-want +got):\n%s", diff)
	}
}

func TestNewWithPreamble(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "#+TITLE: agenda\n\n"+meetingOrg, "new", "--dry-run")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !strings.Contains(out, `"2023-01-01 01:00" "2023-01-01 02:00" Meeting`) {
		t.Errorf("timestamps lost after preamble: %q", out)
	}
}

func TestNewWithoutTimestampFails(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run(t, "* Someday\nno date\n", "new"); err == nil {
		t.Fatal("expected error for item without timestamp")
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	env.runner.output = "* Lunch\n<2023-01-02 Mon 12:00>--<2023-01-02 Mon 13:00>\n\n* Lunch\n<2023-01-02 Mon 12:00>--<2023-01-02 Mon 13:00>\n"

	out, err := env.run(t, "", "--format", `{title} {start}\n`, "list", "work", "today", "7d")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "Lunch 2023-01-02 Mon 12:00\n" {
		t.Errorf("list output = %q", out)
	}
	if got := env.runner.args; len(got) < 2 || got[1] != "list" || got[len(got)-1] != "7d" {
		t.Errorf("unexpected khal args %q", got)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, meetingOrg+meetingOrg, "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != meetingOrg {
		t.Errorf("export output = %q", out)
	}
}

func TestICSRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	cal, err := env.run(t, meetingOrg, "ics")
	if err != nil {
		t.Fatalf("ics: %v", err)
	}
	if !strings.Contains(cal, "X-WR-CALNAME:work") || !strings.Contains(cal, "UID:123") {
		t.Fatalf("unexpected calendar:\n%s", cal)
	}

	out, err := env.run(t, cal, "--format", `{title}|{uid}|{location}|{calendar}\n`, "from-ics")
	if err != nil {
		t.Fatalf("from-ics: %v", err)
	}
	if out != "Meeting|123|Office|work\n" {
		t.Errorf("from-ics output = %q", out)
	}
}

func TestErrors(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("khal_command: khal\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := env.run(t, meetingOrg, "new"); err == nil || !strings.Contains(err.Error(), "no calendar") {
		t.Errorf("expected missing calendar error, got %v", err)
	}
	if _, err := env.run(t, meetingOrg, "--loglevel", "LOUD", "export"); err == nil {
		t.Error("expected error for unknown log level")
	}
	if _, err := env.run(t, "no heading\n", "new", "cal"); err == nil {
		t.Error("expected parse error without a heading")
	}
}
