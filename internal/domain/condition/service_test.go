package condition

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/internal/platform/telemetry"
	"github.com/ehr/phr/pkg/caldate"
	"github.com/ehr/phr/pkg/pagination"
)

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	svc   *Service
	repo  *mockRepo
	links *mockLinkRepo
	meds  *mockMeds
	tx    *countingTx
	rec   *countingRecorder
}

func newTestEnv() *testEnv {
	repo := newMockRepo()
	meds := newMockMeds()
	links := newMockLinkRepo(repo, meds)
	tx := &countingTx{}
	rec := newCountingRecorder()
	svc := NewService(repo, links, meds, tx, rec)
	svc.now = func() time.Time { return fixedNow }
	return &testEnv{svc: svc, repo: repo, links: links, meds: meds, tx: tx, rec: rec}
}

func (e *testEnv) condition(t *testing.T, patientID uuid.UUID, diagnosis string) *Condition {
	t.Helper()
	c, err := e.svc.CreateCondition(context.Background(), patientID, CreateRequest{Diagnosis: diagnosis})
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func requireField(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Details, field)
}

func TestParseStatusAndSeverity(t *testing.T) {
	st, err := ParseStatus(" Chronic")
	require.NoError(t, err)
	assert.Equal(t, StatusChronic, st)
	_, err = ParseStatus("cured")
	assert.Error(t, err)

	sv, err := ParseSeverity("SEVERE")
	require.NoError(t, err)
	assert.Equal(t, SeveritySevere, sv)
	_, err = ParseSeverity("catastrophic")
	assert.Error(t, err)
}

func TestCreateCondition_Normalises(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()

	c, err := env.svc.CreateCondition(context.Background(), patientID, CreateRequest{
		Diagnosis: " Type 2 diabetes ",
		Status:    "Chronic",
		Severity:  strPtr("Moderate"),
		ICD10Code: strPtr(" e11.9 "),
		Notes:     strPtr("  "),
	})
	require.NoError(t, err)

	assert.Equal(t, "Type 2 diabetes", c.Diagnosis)
	assert.Equal(t, StatusChronic, c.Status)
	require.NotNil(t, c.Severity)
	assert.Equal(t, SeverityModerate, *c.Severity)
	require.NotNil(t, c.ICD10Code)
	assert.Equal(t, "E11.9", *c.ICD10Code)
	assert.Nil(t, c.Notes)
}

func TestCreateCondition_Validation(t *testing.T) {
	env := newTestEnv()
	today := caldate.Today(fixedNow)
	tomorrow := today.AddDays(1)
	onset := caldate.MustParse("2025-05-01")
	before := caldate.MustParse("2025-04-30")

	tests := []struct {
		name  string
		req   CreateRequest
		field string
	}{
		{"missing diagnosis", CreateRequest{Diagnosis: "  "}, "diagnosis"},
		{"unknown status", CreateRequest{Diagnosis: "x", Status: "cured"}, "status"},
		{"unknown severity", CreateRequest{Diagnosis: "x", Severity: strPtr("extreme")}, "severity"},
		{"future onset", CreateRequest{Diagnosis: "x", OnsetDate: &tomorrow}, "onset_date"},
		{"future end", CreateRequest{Diagnosis: "x", EndDate: &tomorrow}, "end_date"},
		{"end before onset", CreateRequest{Diagnosis: "x", OnsetDate: &onset, EndDate: &before}, "end_date"},
		{"bad icd10", CreateRequest{Diagnosis: "x", ICD10Code: strPtr("E1")}, "icd10_code"},
		{"bad snomed", CreateRequest{Diagnosis: "x", SNOMEDCode: strPtr("12ab")}, "snomed_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateCondition(context.Background(), uuid.New(), tt.req)
			requireField(t, err, tt.field)
		})
	}

	_, err := env.svc.CreateCondition(context.Background(), uuid.New(), CreateRequest{Diagnosis: "x", OnsetDate: &today})
	assert.NoError(t, err, "onset today is allowed")
}

func TestUpdateCondition_MergePatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	c, err := env.svc.CreateCondition(ctx, patientID, CreateRequest{
		Diagnosis: "Asthma",
		Severity:  strPtr("mild"),
		Notes:     strPtr("seasonal"),
	})
	require.NoError(t, err)

	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"status":"remission","severity":null}`), &req))
	updated, err := env.svc.UpdateCondition(ctx, patientID, c.ID, req)
	require.NoError(t, err)

	assert.Equal(t, StatusRemission, updated.Status)
	assert.Nil(t, updated.Severity)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "seasonal", *updated.Notes, "omitted fields keep their value")
	assert.Equal(t, "Asthma", updated.Diagnosis)

	require.NoError(t, json.Unmarshal([]byte(`{"status":null}`), &req))
	_, err = env.svc.UpdateCondition(ctx, patientID, c.ID, req)
	requireField(t, err, "status")
}

func TestConditionCRUD_OtherPatientIsNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := uuid.New()
	c := env.condition(t, owner, "Migraine")
	other := uuid.New()

	_, err := env.svc.GetCondition(ctx, other, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = env.svc.UpdateCondition(ctx, other, c.ID, UpdateRequest{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(env.svc.DeleteCondition(ctx, other, c.ID), apperr.ErrNotFound))

	require.NoError(t, env.svc.DeleteCondition(ctx, owner, c.ID))
	_, err = env.svc.GetCondition(ctx, owner, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestListConditions_Filters(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	env.condition(t, patientID, "Asthma")
	env.condition(t, patientID, "Hypertension")
	_, err := env.svc.CreateCondition(ctx, patientID, CreateRequest{Diagnosis: "Old fracture", Status: "resolved"})
	require.NoError(t, err)
	env.condition(t, uuid.New(), "Asthma")

	items, total, err := env.svc.ListConditions(ctx, patientID, ListFilter{Params: pagination.Params{Limit: 10, Search: "asth"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Asthma", items[0].Diagnosis)

	_, total, err = env.svc.ListConditions(ctx, patientID, ListFilter{Params: pagination.Params{Limit: 10}, Status: StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestCreateLink(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Hypertension")
	m := env.meds.add(patientID, "Lisinopril")

	link, err := env.svc.CreateLink(ctx, patientID, c.ID, CreateLinkRequest{
		MedicationID:  m.ID,
		RelevanceNote: strPtr("  first line  "),
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, link.ConditionID)
	assert.Equal(t, m.ID, link.MedicationID)
	require.NotNil(t, link.RelevanceNote)
	assert.Equal(t, "first line", *link.RelevanceNote)
	require.NotNil(t, link.Medication)
	assert.Equal(t, "Lisinopril", link.Medication.MedicationName)
	assert.Equal(t, 1, env.rec.created[telemetry.KindConditionMedication])

	_, err = env.svc.CreateLink(ctx, patientID, c.ID, CreateLinkRequest{MedicationID: m.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, 400, apperr.From(err).HTTPStatus)
}

func TestCreateLink_EmptyNoteIsNull(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Asthma")
	m := env.meds.add(patientID, "Salbutamol")

	link, err := env.svc.CreateLink(context.Background(), patientID, c.ID, CreateLinkRequest{MedicationID: m.ID, RelevanceNote: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, link.RelevanceNote)
}

func TestCreateLink_NoteTooLong(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Asthma")
	m := env.meds.add(patientID, "Salbutamol")

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	_, err := env.svc.CreateLink(context.Background(), patientID, c.ID, CreateLinkRequest{MedicationID: m.ID, RelevanceNote: strPtr(string(long))})
	requireField(t, err, "relevance_note")
	assert.Empty(t, env.links.links)
}

func TestCreateLink_CrossPatientIsNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	other := uuid.New()
	c := env.condition(t, patientID, "Asthma")
	foreignCondition := env.condition(t, other, "Asthma")
	m := env.meds.add(patientID, "Salbutamol")
	foreignMed := env.meds.add(other, "Salbutamol")

	_, err := env.svc.CreateLink(ctx, patientID, c.ID, CreateLinkRequest{MedicationID: foreignMed.ID})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = env.svc.CreateLink(ctx, patientID, foreignCondition.ID, CreateLinkRequest{MedicationID: m.ID})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = env.svc.CreateLink(ctx, patientID, c.ID, CreateLinkRequest{MedicationID: uuid.New()})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	assert.Empty(t, env.links.links)
}

func TestBulkCreateLinks_SkipsExisting(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Hypertension")
	a := env.meds.add(patientID, "Amlodipine")
	b := env.meds.add(patientID, "Bisoprolol")

	_, err := env.svc.CreateLink(ctx, patientID, c.ID, CreateLinkRequest{MedicationID: a.ID})
	require.NoError(t, err)

	res, err := env.svc.BulkCreateLinks(ctx, patientID, c.ID, BulkLinkRequest{MedicationIDs: []uuid.UUID{a.ID, b.ID}})
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	assert.Equal(t, b.ID, res.Created[0].MedicationID)
	assert.Equal(t, "Bisoprolol", res.Created[0].Medication.MedicationName)
	assert.Equal(t, []uuid.UUID{a.ID}, res.SkippedMedicationIDs)
	assert.Len(t, env.links.links, 2)
	assert.Equal(t, 1, env.tx.calls)
}

func TestBulkCreateLinks_SecondCallSkipsEverything(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Hypertension")
	ids := []uuid.UUID{
		env.meds.add(patientID, "Amlodipine").ID,
		env.meds.add(patientID, "Bisoprolol").ID,
		env.meds.add(patientID, "Chlorthalidone").ID,
	}

	first, err := env.svc.BulkCreateLinks(ctx, patientID, c.ID, BulkLinkRequest{MedicationIDs: ids, RelevanceNote: strPtr("bp")})
	require.NoError(t, err)
	assert.Len(t, first.Created, 3)
	assert.Empty(t, first.SkippedMedicationIDs)

	second, err := env.svc.BulkCreateLinks(ctx, patientID, c.ID, BulkLinkRequest{MedicationIDs: ids})
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, ids, second.SkippedMedicationIDs)
	assert.Len(t, env.links.links, 3, "no new rows on the second call")

	assert.Equal(t, 3, env.rec.created[telemetry.KindConditionMedication])
	assert.Equal(t, 3, env.rec.skipped[telemetry.KindConditionMedication])
}

func TestBulkCreateLinks_EmptyListIsValidationError(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Asthma")

	_, err := env.svc.BulkCreateLinks(context.Background(), patientID, c.ID, BulkLinkRequest{})
	requireField(t, err, "medication_ids")
	assert.Equal(t, 422, apperr.From(err).HTTPStatus)
}

func TestBulkCreateLinks_RepeatedIDsLinkOnce(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Asthma")
	m := env.meds.add(patientID, "Salbutamol")

	res, err := env.svc.BulkCreateLinks(context.Background(), patientID, c.ID, BulkLinkRequest{MedicationIDs: []uuid.UUID{m.ID, m.ID}})
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Empty(t, res.SkippedMedicationIDs)
}

func TestBulkCreateLinks_ConcurrentInsertBecomesSkip(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Asthma")
	a := env.meds.add(patientID, "Salbutamol")
	b := env.meds.add(patientID, "Budesonide")
	env.links.raced[a.ID] = true

	res, err := env.svc.BulkCreateLinks(context.Background(), patientID, c.ID, BulkLinkRequest{MedicationIDs: []uuid.UUID{a.ID, b.ID}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, res.SkippedMedicationIDs)
	require.Len(t, res.Created, 1)
	assert.Equal(t, b.ID, res.Created[0].MedicationID)
}

func TestBulkCreateLinks_ForeignMedicationWritesNothing(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Asthma")
	mine := env.meds.add(patientID, "Salbutamol")
	foreign := env.meds.add(uuid.New(), "Budesonide")

	_, err := env.svc.BulkCreateLinks(context.Background(), patientID, c.ID, BulkLinkRequest{MedicationIDs: []uuid.UUID{mine.ID, foreign.ID}})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, env.links.links)
	assert.Zero(t, env.tx.calls)
}

func TestListLinks(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	asthma := env.condition(t, patientID, "Asthma")
	copd := env.condition(t, patientID, "COPD")
	m := env.meds.add(patientID, "Salbutamol")

	for _, c := range []*Condition{asthma, copd} {
		_, err := env.svc.CreateLink(ctx, patientID, c.ID, CreateLinkRequest{MedicationID: m.ID})
		require.NoError(t, err)
	}

	byCondition, err := env.svc.ListLinksByCondition(ctx, patientID, asthma.ID)
	require.NoError(t, err)
	require.Len(t, byCondition, 1)
	assert.Equal(t, "Salbutamol", byCondition[0].Medication.MedicationName)

	byMedication, err := env.svc.ListLinksByMedication(ctx, patientID, m.ID)
	require.NoError(t, err)
	require.Len(t, byMedication, 2)
	for _, v := range byMedication {
		require.NotNil(t, v.Condition)
		assert.Contains(t, []string{"Asthma", "COPD"}, v.Condition.Diagnosis)
	}

	_, err = env.svc.ListLinksByMedication(ctx, uuid.New(), m.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = env.svc.ListLinksByCondition(ctx, uuid.New(), asthma.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateLink_NoteOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	c := env.condition(t, patientID, "Asthma")
	m := env.meds.add(patientID, "Salbutamol")
	link, err := env.svc.CreateLink(ctx, patientID, c.ID, CreateLinkRequest{MedicationID: m.ID, RelevanceNote: strPtr("rescue")})
	require.NoError(t, err)

	var keep UpdateLinkRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &keep))
	updated, err := env.svc.UpdateLink(ctx, patientID, c.ID, link.ID, keep)
	require.NoError(t, err)
	require.NotNil(t, updated.RelevanceNote)
	assert.Equal(t, "rescue", *updated.RelevanceNote)

	var change UpdateLinkRequest
	require.NoError(t, json.Unmarshal([]byte(`{"relevance_note":" as needed "}`), &change))
	updated, err = env.svc.UpdateLink(ctx, patientID, c.ID, link.ID, change)
	require.NoError(t, err)
	assert.Equal(t, "as needed", *updated.RelevanceNote)
	assert.Equal(t, m.ID, updated.MedicationID)

	var clear UpdateLinkRequest
	require.NoError(t, json.Unmarshal([]byte(`{"relevance_note":""}`), &clear))
	updated, err = env.svc.UpdateLink(ctx, patientID, c.ID, link.ID, clear)
	require.NoError(t, err)
	assert.Nil(t, updated.RelevanceNote)
}

func TestDeleteLink_MismatchedConditionIsNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	patientID := uuid.New()
	asthma := env.condition(t, patientID, "Asthma")
	copd := env.condition(t, patientID, "COPD")
	m := env.meds.add(patientID, "Salbutamol")
	link, err := env.svc.CreateLink(ctx, patientID, asthma.ID, CreateLinkRequest{MedicationID: m.ID})
	require.NoError(t, err)

	err = env.svc.DeleteLink(ctx, patientID, copd.ID, link.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Len(t, env.links.links, 1, "a mismatched delete must not remove the link")

	require.NoError(t, env.svc.DeleteLink(ctx, patientID, asthma.ID, link.ID))
	assert.Empty(t, env.links.links)
	assert.Equal(t, 1, env.rec.deleted[telemetry.KindConditionMedication])

	err = env.svc.DeleteLink(ctx, patientID, asthma.ID, link.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
