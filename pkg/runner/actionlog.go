package runner

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"time"

	"github.com/lantest-net/lantest/pkg/util"
)

// ActionLog accumulates the three per-run XML documents: pretest.xml
// (setup phase), posttest.xml (cleanup phase), and tr.xml (test
// results). Logging is strictly best-effort: Save failures are logged
// and swallowed so a full disk can never fail a test run.
type ActionLog struct {
	pretest  actionDoc
	posttest actionDoc
	results  trDoc
}

// Entry is one logged device action.
type Entry struct {
	Device    string `xml:"Device"`
	Action    string `xml:"Action"`
	Command   string `xml:"Command"`
	Output    string `xml:"Output"`
	Status    string `xml:"Status"`
	Timestamp string `xml:"Timestamp"`
}

// Metadata heads each document.
type Metadata struct {
	TestName     string `xml:"TestName"`
	RunID        string `xml:"RunID"`
	Timestamp    string `xml:"Timestamp"`
	LogDirectory string `xml:"LogDirectory"`
}

type actionDoc struct {
	Metadata Metadata
	Entries  []Entry
}

type trEntry struct {
	TestName  string `xml:"TestName"`
	Device    string `xml:"Device"`
	Result    string `xml:"Result"`
	Details   string `xml:"Details"`
	Timestamp string `xml:"Timestamp"`
}

type trDoc struct {
	Metadata Metadata
	Entries  []trEntry
}

const timestampLayout = "2006-01-02 15:04:05"

// NewActionLog creates an action log with metadata stamped into all
// three documents.
func NewActionLog(testName, runID, logDir string) *ActionLog {
	meta := Metadata{
		TestName:     testName,
		RunID:        runID,
		Timestamp:    time.Now().Format(timestampLayout),
		LogDirectory: logDir,
	}
	return &ActionLog{
		pretest:  actionDoc{Metadata: meta},
		posttest: actionDoc{Metadata: meta},
		results:  trDoc{Metadata: meta},
	}
}

func newEntry(device, action, command, output string, status StepStatus) Entry {
	return Entry{
		Device:    device,
		Action:    action,
		Command:   command,
		Output:    output,
		Status:    string(status),
		Timestamp: time.Now().Format(timestampLayout),
	}
}

// AddPretest records a setup-phase action.
func (l *ActionLog) AddPretest(device, action, command, output string, status StepStatus) {
	l.pretest.Entries = append(l.pretest.Entries, newEntry(device, action, command, output, status))
}

// AddPosttest records a cleanup-phase action.
func (l *ActionLog) AddPosttest(device, action, command, output string, status StepStatus) {
	l.posttest.Entries = append(l.posttest.Entries, newEntry(device, action, command, output, status))
}

// AddResult records a test-body outcome.
func (l *ActionLog) AddResult(testName, device string, status StepStatus, details string) {
	l.results.Entries = append(l.results.Entries, trEntry{
		TestName:  testName,
		Device:    device,
		Result:    string(status),
		Details:   details,
		Timestamp: time.Now().Format(timestampLayout),
	})
}

// XML document shapes. Root and entry element names follow the
// pretest/posttest/tr layout consumed by downstream tooling.

type preTestXML struct {
	XMLName  xml.Name `xml:"PreTest"`
	Metadata Metadata `xml:"Metadata"`
	Entries  []Entry  `xml:"PreTestAction"`
}

type postTestXML struct {
	XMLName  xml.Name `xml:"PostTest"`
	Metadata Metadata `xml:"Metadata"`
	Entries  []Entry  `xml:"PostTestAction"`
}

type testResultsXML struct {
	XMLName  xml.Name  `xml:"TestResults"`
	Metadata Metadata  `xml:"Metadata"`
	Entries  []trEntry `xml:"TestCase"`
}

// Save writes pretest.xml, posttest.xml, and tr.xml under dir. Write
// failures are logged, never returned.
func (l *ActionLog) Save(dir string) {
	l.saveDoc(filepath.Join(dir, "pretest.xml"),
		preTestXML{Metadata: l.pretest.Metadata, Entries: l.pretest.Entries})
	l.saveDoc(filepath.Join(dir, "posttest.xml"),
		postTestXML{Metadata: l.posttest.Metadata, Entries: l.posttest.Entries})
	l.saveDoc(filepath.Join(dir, "tr.xml"),
		testResultsXML{Metadata: l.results.Metadata, Entries: l.results.Entries})
}

func (l *ActionLog) saveDoc(path string, doc any) {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		util.Warnf("action log: marshal %s: %v", filepath.Base(path), err)
		return
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0o644); err != nil {
		util.Warnf("action log: write %s: %v", filepath.Base(path), err)
	}
}
