package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dojo/internal/adapters/blob"
	"dojo/internal/domain/applicant"
	"dojo/internal/domain/document"
	"dojo/internal/domain/member"
	"dojo/internal/domain/parq"
	"dojo/internal/domain/wizard"
)

var wizardNow = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

// pngBytes is the PNG signature followed by padding, enough for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func pngUpload(name string) *UploadInput {
	return &UploadInput{Filename: name, Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes)}
}

// saID builds a valid South African identity number for the given birth date.
func saID(t *testing.T, dob time.Time) string {
	t.Helper()
	prefix := dob.Format("060102") + "500908"
	for c := 0; c <= 9; c++ {
		id := fmt.Sprintf("%s%d", prefix, c)
		if _, err := applicant.ParseSAID(id, wizardNow); err == nil {
			return id
		}
	}
	t.Fatalf("no check digit found for %s", prefix)
	return ""
}

func testStudent(t *testing.T, dob time.Time) applicant.Student {
	return applicant.Student{
		Person: applicant.Person{
			FirstName:   "Thandi",
			LastName:    "Mokoena",
			IDType:      applicant.IDTypeSAID,
			IDNumber:    saID(t, dob),
			DateOfBirth: dob,
		},
		Contact: applicant.Contact{Email: "Thandi@Example.com", Phone: "0821234567"},
	}
}

func newStepDeps(t *testing.T, members *mockMemberStore) (StepDeps, *mockDocumentStore) {
	t.Helper()
	blobs, err := blob.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	docs := newMockDocumentStore()
	return StepDeps{
		MemberStore: members,
		Uploads: UploadDeps{
			DocumentStore: docs,
			Blobs:         blobs,
			MaxBytes:      1024,
			Now:           func() time.Time { return wizardNow },
			GenerateID:    sequence("doc"),
		},
		Now: func() time.Time { return wizardNow },
	}, docs
}

// TestSaveParQ_ClearanceRule verifies that any yes among Q1-Q6 needs a clearance letter.
func TestSaveParQ_ClearanceRule(t *testing.T) {
	yesTo := func(q int) [parq.QuestionCount]bool {
		var a [parq.QuestionCount]bool
		a[q-1] = true
		return a
	}
	tests := []struct {
		name    string
		input   ParQInput
		wantErr error
	}{
		{"all no", ParQInput{Declared: true}, nil},
		{"q1 yes without letter", ParQInput{Answers: yesTo(1), Declared: true}, parq.ErrClearanceLetterRequired},
		{"q6 yes without letter", ParQInput{Answers: yesTo(6), Declared: true}, parq.ErrClearanceLetterRequired},
		{"q3 yes with letter", ParQInput{Answers: yesTo(3), Declared: true, Letter: pngUpload("letter.png")}, nil},
		{"q7 yes without details", ParQInput{Answers: yesTo(7), Declared: true}, parq.ErrDetailsRequired},
		{"q7 yes with details", ParQInput{Answers: yesTo(7), Declared: true, Details: "recovering from flu"}, nil},
		{"not declared", ParQInput{}, parq.ErrNotDeclared},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, docs := newStepDeps(t, newMockMemberStore())
			st := wizard.New("tok", wizardNow)
			err := ExecuteSaveParQ(context.Background(), st, tt.input, deps)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExecuteSaveParQ() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if !IsInputError(err) {
					t.Errorf("error %v should be an input error", err)
				}
				if st.ParQAccepted() {
					t.Error("rejected form must not be stored")
				}
				if len(docs.docs) != 0 {
					t.Error("rejected form must not store its letter")
				}
				return
			}
			if !st.ParQAccepted() {
				t.Fatal("form should be completed")
			}
			if tt.input.Letter != nil && st.ParQ.ClearanceDocumentID == "" {
				t.Error("letter should be attached")
			}
		})
	}
}

// TestSaveParQ_KeepsEarlierLetter verifies a resubmission can rely on the letter already uploaded.
func TestSaveParQ_KeepsEarlierLetter(t *testing.T) {
	deps, _ := newStepDeps(t, newMockMemberStore())
	st := wizard.New("tok", wizardNow)
	answers := [parq.QuestionCount]bool{true}

	if err := ExecuteSaveParQ(context.Background(), st, ParQInput{Answers: answers, Declared: true, Letter: pngUpload("a.png")}, deps); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	letter := st.ParQ.ClearanceDocumentID
	if err := ExecuteSaveParQ(context.Background(), st, ParQInput{Answers: answers, Declared: true}, deps); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if st.ParQ.ClearanceDocumentID != letter {
		t.Errorf("letter = %q, want %q", st.ParQ.ClearanceDocumentID, letter)
	}
}

// TestUploadDocument_RejectsUnsupportedContent verifies the sniffed type decides, not the filename.
func TestUploadDocument_RejectsUnsupportedContent(t *testing.T) {
	deps, docs := newStepDeps(t, newMockMemberStore())
	body := []byte("#!/bin/sh\necho hi\n")
	_, err := ExecuteUploadDocument(context.Background(), UploadInput{
		Kind: document.KindStudentID, Filename: "id.png", Size: int64(len(body)), Body: bytes.NewReader(body),
	}, deps.Uploads)
	if !errors.Is(err, document.ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
	if len(docs.docs) != 0 {
		t.Error("rejected upload must not be stored")
	}

	big := UploadInput{Kind: document.KindStudentID, Filename: "../../id.png", Size: 4096, Body: bytes.NewReader(pngBytes)}
	if _, err := ExecuteUploadDocument(context.Background(), big, deps.Uploads); !errors.Is(err, document.ErrTooLarge) {
		t.Fatalf("error = %v, want ErrTooLarge", err)
	}

	doc, err := ExecuteUploadDocument(context.Background(), UploadInput{
		Kind: document.KindStudentID, Filename: `C:\scans\..\id.png`, Size: int64(len(pngBytes)), Body: bytes.NewReader(pngBytes),
	}, deps.Uploads)
	if err != nil {
		t.Fatalf("ExecuteUploadDocument: %v", err)
	}
	if doc.ContentType != "image/png" || doc.Filename != "id.png" {
		t.Errorf("doc = %+v", doc)
	}
	rc, err := deps.Uploads.Blobs.Open(context.Background(), doc.BlobKey)
	if err != nil {
		t.Fatalf("Open(%s): %v", doc.BlobKey, err)
	}
	rc.Close()
}

// TestSaveStudent_AgeGateAndExistingMember covers the minor branch and identity lookups.
func TestSaveStudent_AgeGateAndExistingMember(t *testing.T) {
	adultDOB := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	minorDOB := time.Date(2014, 7, 20, 0, 0, 0, 0, time.UTC)
	turns18Tomorrow := time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC)

	inactive := member.Member{ID: "m-old", MembershipNumber: "ZF0042", IDNumber: saID(t, adultDOB), Status: member.StatusInactive}

	tests := []struct {
		name         string
		dob          time.Time
		members      []member.Member
		wantMinor    bool
		wantExisting bool
		wantErr      error
		wantNext     wizard.Step
	}{
		{"adult", adultDOB, nil, false, false, nil, wizard.StepPreviousTraining},
		{"minor", minorDOB, nil, true, false, nil, wizard.StepParentDetails},
		{"seventeen until tomorrow", turns18Tomorrow, nil, true, false, nil, wizard.StepParentDetails},
		{"inactive member", adultDOB, []member.Member{inactive}, false, true, nil, wizard.StepPreviousTraining},
		{"active member", adultDOB, []member.Member{{ID: "m-a", IDNumber: saID(t, adultDOB), Status: member.StatusActive}}, false, false, member.ErrActiveMembership, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := newStepDeps(t, newMockMemberStore(tt.members...))
			st := wizard.New("tok", wizardNow)
			st.SetParQ(parq.Form{Declared: true, Completed: true})

			err := ExecuteSaveStudent(context.Background(), st, StudentInput{Student: testStudent(t, tt.dob)}, deps)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if st.Minor != tt.wantMinor {
				t.Errorf("Minor = %v, want %v", st.Minor, tt.wantMinor)
			}
			if st.Reactivating() != tt.wantExisting {
				t.Errorf("Reactivating = %v, want %v", st.Reactivating(), tt.wantExisting)
			}
			if st.Student.Email != "thandi@example.com" {
				t.Errorf("email not normalized: %q", st.Student.Email)
			}
			if got := st.Next(wizard.StepRegistration); got != tt.wantNext {
				t.Errorf("Next = %s, want %s", got, tt.wantNext)
			}
		})
	}
}

// TestSaveStudent_LookupFailure verifies store errors are internal, not shown as validation.
func TestSaveStudent_LookupFailure(t *testing.T) {
	members := newMockMemberStore()
	members.lookupErr = errors.New("database is locked")
	deps, _ := newStepDeps(t, members)
	st := wizard.New("tok", wizardNow)

	err := ExecuteSaveStudent(context.Background(), st, StudentInput{Student: testStudent(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))}, deps)
	if err == nil || IsInputError(err) {
		t.Fatalf("error = %v, want internal error", err)
	}
}

func minorState(t *testing.T) *wizard.State {
	st := wizard.New("tok", wizardNow)
	st.SetParQ(parq.Form{Declared: true, Completed: true})
	st.SetStudent(testStudent(t, time.Date(2014, 7, 20, 0, 0, 0, 0, time.UTC)), true, nil)
	return st
}

func testParent() applicant.Parent {
	return applicant.Parent{
		FirstName:    "Lerato",
		LastName:     "Mokoena",
		IDType:       applicant.IDTypePassport,
		IDNumber:     "A1234567",
		Relationship: "mother",
		Contact:      applicant.Contact{Email: "Lerato@Example.com", Phone: "0829876543"},
	}
}

// TestSaveParent_RequiresIDPhoto verifies the guardian's ID front is mandatory once.
func TestSaveParent_RequiresIDPhoto(t *testing.T) {
	deps, _ := newStepDeps(t, newMockMemberStore())
	st := minorState(t)

	err := ExecuteSaveParent(context.Background(), st, ParentInput{Parent: testParent()}, deps)
	if !errors.Is(err, ErrParentIDRequired) {
		t.Fatalf("error = %v, want ErrParentIDRequired", err)
	}

	if err := ExecuteSaveParent(context.Background(), st, ParentInput{Parent: testParent(), IDFront: pngUpload("front.png")}, deps); err != nil {
		t.Fatalf("ExecuteSaveParent: %v", err)
	}
	if st.Parent.IDFrontDocumentID == "" || st.Parent.Email != "lerato@example.com" {
		t.Errorf("parent = %+v", st.Parent)
	}

	// Editing the guardian later keeps the uploaded photo.
	p := testParent()
	p.Phone = "0831112222"
	if err := ExecuteSaveParent(context.Background(), st, ParentInput{Parent: p}, deps); err != nil {
		t.Fatalf("edit parent: %v", err)
	}
	if st.Parent.IDFrontDocumentID == "" {
		t.Error("ID photo lost on edit")
	}
}

// TestSaveParent_AdultStudent verifies the guardian step is unavailable for adults.
func TestSaveParent_AdultStudent(t *testing.T) {
	deps, _ := newStepDeps(t, newMockMemberStore())
	st := wizard.New("tok", wizardNow)
	if err := ExecuteSaveParent(context.Background(), st, ParentInput{Parent: testParent()}, deps); !errors.Is(err, wizard.ErrStepUnavailable) {
		t.Fatalf("error = %v, want ErrStepUnavailable", err)
	}
}

// TestSaveChildren validates the list of additional children.
func TestSaveChildren(t *testing.T) {
	childDOB := time.Date(2016, 5, 5, 0, 0, 0, 0, time.UTC)
	child := func(t *testing.T) applicant.Child {
		return applicant.Child{Person: applicant.Person{
			FirstName: "Sipho", LastName: "Mokoena", IDType: applicant.IDTypeSAID,
			IDNumber: saID(t, childDOB), DateOfBirth: childDOB,
		}}
	}

	t.Run("none", func(t *testing.T) {
		deps, _ := newStepDeps(t, newMockMemberStore())
		st := minorState(t)
		if err := ExecuteSaveChildren(context.Background(), st, nil, deps); err != nil {
			t.Fatalf("ExecuteSaveChildren: %v", err)
		}
		if !st.ChildrenDone {
			t.Error("ChildrenDone should be set")
		}
	})

	t.Run("with photo", func(t *testing.T) {
		deps, _ := newStepDeps(t, newMockMemberStore())
		st := minorState(t)
		in := []ChildInput{{Child: child(t), Photo: pngUpload("sipho.png")}}
		if err := ExecuteSaveChildren(context.Background(), st, in, deps); err != nil {
			t.Fatalf("ExecuteSaveChildren: %v", err)
		}
		if len(st.Children) != 1 || st.Children[0].PhotoDocumentID == "" {
			t.Errorf("children = %+v", st.Children)
		}
	})

	t.Run("repeats student", func(t *testing.T) {
		deps, _ := newStepDeps(t, newMockMemberStore())
		st := minorState(t)
		c := child(t)
		c.IDNumber = st.Student.IDNumber
		c.DateOfBirth = st.Student.DateOfBirth
		err := ExecuteSaveChildren(context.Background(), st, []ChildInput{{Child: c}}, deps)
		if !errors.Is(err, applicant.ErrDuplicateChildID) {
			t.Fatalf("error = %v, want ErrDuplicateChildID", err)
		}
	})

	t.Run("already a member", func(t *testing.T) {
		c := child(t)
		deps, _ := newStepDeps(t, newMockMemberStore(member.Member{ID: "m1", IDNumber: c.IDNumber, Status: member.StatusArchived}))
		st := minorState(t)
		err := ExecuteSaveChildren(context.Background(), st, []ChildInput{{Child: c}}, deps)
		if !errors.Is(err, ErrChildAlreadyMember) {
			t.Fatalf("error = %v, want ErrChildAlreadyMember", err)
		}
	})
}

// TestIdentitySteps covers reactivation confirmation and the ID upload.
func TestIdentitySteps(t *testing.T) {
	deps, _ := newStepDeps(t, newMockMemberStore())

	fresh := wizard.New("tok", wizardNow)
	if err := ExecuteConfirmReactivation(fresh, true, wizardNow); !errors.Is(err, wizard.ErrStepUnavailable) {
		t.Errorf("confirm without match: %v", err)
	}
	if err := ExecuteUploadID(context.Background(), fresh, nil, deps); !errors.Is(err, ErrIDDocumentRequired) {
		t.Errorf("upload without file: %v", err)
	}
	if err := ExecuteUploadID(context.Background(), fresh, pngUpload("id.png"), deps); err != nil {
		t.Fatalf("ExecuteUploadID: %v", err)
	}
	if fresh.IDDocumentID == "" || len(fresh.DocumentIDs) != 1 {
		t.Errorf("state = %+v", fresh)
	}

	returning := wizard.New("tok2", wizardNow)
	returning.SetStudent(testStudent(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)), false,
		&wizard.ExistingMember{MemberID: "m1", MembershipNumber: "ZF0042", Status: member.StatusInactive})
	if err := ExecuteUploadID(context.Background(), returning, pngUpload("id.png"), deps); !errors.Is(err, wizard.ErrStepUnavailable) {
		t.Errorf("upload while reactivating: %v", err)
	}
	if err := ExecuteConfirmReactivation(returning, false, wizardNow); !errors.Is(err, ErrReactivationNotConfirmed) {
		t.Errorf("unconfirmed: %v", err)
	}
	if err := ExecuteConfirmReactivation(returning, true, wizardNow); err != nil || !returning.ReactivationConfirmed {
		t.Errorf("confirm: %v", err)
	}
}

// TestDecideConsent verifies accept and reject lead to different pages.
func TestDecideConsent(t *testing.T) {
	tests := []struct {
		step   wizard.Step
		accept bool
		want   wizard.Step
	}{
		{wizard.StepIndemnity, true, wizard.StepPopia},
		{wizard.StepIndemnity, false, wizard.StepIndemnityRejected},
		{wizard.StepPopia, true, wizard.StepSummary},
		{wizard.StepPopia, false, wizard.StepPopiaRejected},
	}
	for _, tt := range tests {
		st := wizard.New("tok", wizardNow)
		if err := ExecuteDecideConsent(st, tt.step, tt.accept, wizardNow); err != nil {
			t.Fatalf("ExecuteDecideConsent(%s): %v", tt.step, err)
		}
		if got := st.Next(tt.step); got != tt.want {
			t.Errorf("%s accept=%v: Next = %s, want %s", tt.step, tt.accept, got, tt.want)
		}
	}
	if err := ExecuteDecideConsent(wizard.New("tok", wizardNow), wizard.StepSummary, true, wizardNow); err == nil {
		t.Error("summary is not a consent step")
	}
}
