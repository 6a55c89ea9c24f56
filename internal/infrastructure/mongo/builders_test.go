package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wellnest/survey-api/internal/infrastructure/messenger"
	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

func TestBuildSurveyFilterRestrictsToVisibleLiveSurveys(t *testing.T) {
	filter := buildSurveyFilter(application.SurveyFilter{
		Status:     "active",
		Search:     "sleep (beta)",
		Visibility: application.Visibility{CompanyIDs: []string{"acme", ""}, Global: true},
	})

	assert.Nil(t, filter["deletedAt"])
	assert.Contains(t, filter, "deletedAt")
	assert.Equal(t, "ACTIVE", filter["status"])
	assert.Equal(t, primitive.Regex{Pattern: `sleep \(beta\)`, Options: "i"}, filter["title"])

	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"companyId": bson.M{"$in": []string{"acme"}}}, or[0])
	assert.Equal(t, bson.M{"companyId": nil}, or[1])
}

func TestBuildSurveyFilterRootSeesEverything(t *testing.T) {
	filter := buildSurveyFilter(application.SurveyFilter{Visibility: application.Visibility{All: true}})
	assert.NotContains(t, filter, "$or")
	assert.Len(t, filter, 1)
}

func TestBuildSurveySetOnlyTouchesPatchedFields(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	title := "Renamed"
	status := domain.StatusInactive

	set := buildSurveySet(application.SurveyPatch{
		Title:    &title,
		Status:   &status,
		LogoKey:  application.Null[string](),
		ImageKey: application.Value("survey-images/a.png"),
	}, now)

	assert.Equal(t, bson.M{
		"updatedAt": now,
		"title":     "Renamed",
		"status":    "INACTIVE",
		"logoKey":   (*string)(nil),
		"imageKey":  set["imageKey"],
	}, set)
	require.NotNil(t, set["imageKey"])
	assert.Equal(t, "survey-images/a.png", *set["imageKey"].(*string))
	assert.NotContains(t, set, "categoryId")
}

func TestBuildQuestionWriteModels(t *testing.T) {
	now := time.Now().UTC()
	surveyID := primitive.NewObjectID().Hex()
	existing := primitive.NewObjectID().Hex()
	stale := primitive.NewObjectID().Hex()

	models, err := buildQuestionWriteModels([]application.QuestionOp{
		{Kind: application.OpInsert, Question: domain.Question{SurveyID: surveyID, Title: "New", Position: 0}},
		{Kind: application.OpUpdate, Question: domain.Question{ID: existing, SurveyID: surveyID, Title: "Kept", Position: 1}},
		{Kind: application.OpDelete, Question: domain.Question{SurveyID: surveyID}, DeleteIDs: []string{stale}},
	}, now)
	require.NoError(t, err)
	require.Len(t, models, 3)

	insert, ok := models[0].(*mongo.InsertOneModel)
	require.True(t, ok)
	doc := insert.Document.(QuestionDocument)
	assert.Equal(t, surveyID, doc.SurveyID.Hex())
	assert.Equal(t, []string{}, doc.Options)
	assert.Equal(t, now, doc.CreatedAt)

	update, ok := models[1].(*mongo.UpdateOneModel)
	require.True(t, ok)
	filter := update.Filter.(bson.M)
	assert.Contains(t, filter, "surveyId")
	assert.Contains(t, filter, "deletedAt")

	remove, ok := models[2].(*mongo.UpdateManyModel)
	require.True(t, ok)
	set := remove.Update.(bson.M)["$set"].(bson.M)
	assert.Equal(t, now, set["deletedAt"])
}

func TestBuildQuestionWriteModelsRejectsMalformedIDs(t *testing.T) {
	_, err := buildQuestionWriteModels([]application.QuestionOp{
		{Kind: application.OpUpdate, Question: domain.Question{ID: "q1", SurveyID: primitive.NewObjectID().Hex()}},
	}, time.Now())
	assert.Error(t, err)
}

func TestApprovalFilterAndSort(t *testing.T) {
	filter := buildApprovalFilter(application.ApprovalFilter{
		ContentStatus: "draft",
		Visibility:    application.Visibility{CompanyIDs: []string{"acme"}},
	})
	assert.Equal(t, domain.ContentTypeSurvey, filter["contentType"])
	assert.Equal(t, "DRAFT", filter["contentStatus"])
	assert.Len(t, filter["$or"], 1)

	sort := sortSpec(approvalSortFields, application.Paging{Sort: "unknown", Desc: true}, "updatedOn")
	assert.Equal(t, bson.D{{Key: "updatedOn", Value: -1}, {Key: "_id", Value: -1}}, sort)
}

func TestIDCandidatesCoversBothEncodings(t *testing.T) {
	oid := primitive.NewObjectID()
	keys := idCandidates([]string{"coach-1", oid.Hex(), "coach-1", ""})
	assert.Equal(t, bson.A{"coach-1", oid.Hex(), oid}, keys)
}

func TestFailedNotificationDocumentIsPending(t *testing.T) {
	now := time.Now().UTC()
	doc := newFailedNotificationDocument(messenger.FailedDelivery{
		Target:      "approval_requested",
		Destination: "discord",
		UserID:      "coach-1",
		Text:        "hello",
		Error:       "status=500",
	}, now)
	assert.Equal(t, "pending", doc.Status)
	assert.Equal(t, 1, doc.Attempts)
	assert.Equal(t, now, doc.LastTriedAt)
}
