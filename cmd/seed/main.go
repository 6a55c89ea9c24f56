package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wellnest/survey-api/internal/infrastructure/messenger"
	mongodoc "github.com/wellnest/survey-api/internal/infrastructure/mongo"
	s3media "github.com/wellnest/survey-api/internal/infrastructure/s3"
	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

type seedOptions struct {
	envName         string
	surveyCount     int
	dropCollections bool
	randomSeed      int64
}

var (
	companies  = []string{"acme", "globex"}
	categories = []string{"sleep", "nutrition", "stress", "activity"}
	platforms  = [][]string{{"IOS", "ANDROID"}, {"WEB"}, {"IOS", "ANDROID", "WEB"}}
	titles     = []string{"睡眠の質チェック", "食生活アンケート", "ストレス度セルフチェック", "運動習慣アンケート", "週次コンディション"}
	questions  = []application.QuestionInput{
		{Title: "昨晩の睡眠時間は?", Options: []string{"5時間未満", "5-7時間", "7時間以上"}},
		{Title: "今日の気分は?", Options: []string{"良い", "普通", "悪い"}},
		{Title: "自由記述", Skipable: true},
	}
)

func main() {
	opts := parseFlags()

	if err := loadEnvFiles(opts.envName); err != nil {
		log.Printf("WARN: 環境変数ファイルの読み込みに失敗しました: %v", err)
	}

	names := mongodoc.Collections{
		Surveys:             envOrDefault("SURVEY_COLLECTION", "surveys"),
		Questions:           envOrDefault("QUESTION_COLLECTION", "questions"),
		Approvals:           envOrDefault("APPROVAL_COLLECTION", "content_approvals"),
		Users:               envOrDefault("USER_COLLECTION", "users"),
		Categories:          envOrDefault("CATEGORY_COLLECTION", "categories"),
		FailedNotifications: envOrDefault("FAILED_NOTIFICATION_COLLECTION", "failed_notifications"),
	}

	mongoURI := envOrDefault("MONGO_URI", "mongodb://localhost:27017")
	dbName := envOrDefault("MONGO_DB", "wellnest")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("MongoDB 接続に失敗しました: %v", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	db := client.Database(dbName)

	if opts.dropCollections {
		dropCollections(ctx, db, names)
		log.Printf("既存コレクションを削除しました")
	}

	if err := mongodoc.EnsureIndexes(ctx, db, names); err != nil {
		log.Fatalf("インデックス作成に失敗しました: %v", err)
	}

	actors := seedActors()
	if err := insertDirectory(ctx, db, names, actors); err != nil {
		log.Fatalf("ユーザー・カテゴリの挿入に失敗しました: %v", err)
	}

	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags)
	surveys := mongodoc.NewSurveyRepository(db, names.Surveys)
	questionRepo := mongodoc.NewQuestionRepository(db, names.Questions)
	approvals := mongodoc.NewApprovalRepository(db, names.Approvals)
	notifier := messenger.NewNotifier(messenger.Config{}, nil, nil, logger)
	workflow := application.NewApprovalWorkflow(surveys, approvals, notifier, logger, "Wellnest")
	reconciler := application.NewQuestionReconciler(surveys, questionRepo, logger)
	authoring := application.NewAuthoringService(surveys, questionRepo, reconciler, workflow, s3media.Disabled{}, nil, logger)
	moderation := application.NewModerationService(workflow, nil)

	rng := rand.New(rand.NewSource(opts.randomSeed))
	created, decided := 0, 0
	for i := 0; i < opts.surveyCount; i++ {
		author := actors[rng.Intn(len(actors))]
		result, err := authoring.Create(ctx, author, randomSurvey(rng, author, i))
		if err != nil {
			log.Fatalf("アンケート作成に失敗しました: %v", err)
		}
		created++
		if result.Outcome != application.OutcomeOpened {
			continue
		}
		decision := string(domain.ContentApproved)
		if rng.Intn(3) == 0 {
			decision = string(domain.ContentRejected)
		}
		if rng.Intn(4) == 0 {
			continue
		}
		comment := "シードデータによる判定"
		if _, err := moderation.Decide(ctx, actors[0], application.DecisionCommand{
			SurveyID: result.Survey.ID,
			Decision: decision,
			Comment:  &comment,
		}); err != nil {
			log.Fatalf("承認判定に失敗しました: %v", err)
		}
		decided++
	}

	log.Printf("Seed 完了: users=%d categories=%d surveys=%d decided=%d", len(actors), len(categories), created, decided)
	log.Printf("Mongo: %s / %s (env=%s)", mongoURI, dbName, opts.envName)
}

func parseFlags() seedOptions {
	var opts seedOptions
	flag.StringVar(&opts.envName, "env", "local", "env ディレクトリ内の env ファイル名 (例: local, staging)")
	flag.IntVar(&opts.surveyCount, "surveys", 20, "生成するアンケート数")
	flag.BoolVar(&opts.dropCollections, "drop", true, "既存コレクションを削除してから投入する")
	flag.Int64Var(&opts.randomSeed, "seed", time.Now().UnixNano(), "乱数シード（再現用）")
	flag.Parse()

	if opts.surveyCount < 0 {
		opts.surveyCount = 0
	}
	return opts
}

func loadEnvFiles(envName string) error {
	base := filepath.Clean(filepath.Join("..", "env"))
	return godotenv.Load(
		filepath.Join(base, "shared.env"),
		filepath.Join(base, fmt.Sprintf("%s.env", envName)),
	)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func dropCollections(ctx context.Context, db *mongo.Database, names mongodoc.Collections) {
	for _, name := range []string{
		names.Surveys, names.Questions, names.Approvals, names.Users, names.Categories, names.FailedNotifications,
	} {
		if err := db.Collection(name).Drop(ctx); err != nil {
			log.Printf("WARN: コレクション %s の削除に失敗: %v", name, err)
		}
	}
}

// seedActors の先頭は常に root_admin。
func seedActors() []domain.Actor {
	actors := []domain.Actor{{ID: "user-root", Name: "運営管理者", Role: domain.RoleRootAdmin}}
	for i, company := range companies {
		actors = append(actors,
			domain.Actor{ID: fmt.Sprintf("user-admin-%d", i+1), Name: fmt.Sprintf("%s 管理者", company), Role: domain.RoleOrgAdmin, CompanyID: &company},
			domain.Actor{ID: fmt.Sprintf("user-coach-%d", i+1), Name: fmt.Sprintf("%s コーチ", company), Role: domain.RoleCoach, CompanyID: &company},
		)
	}
	return actors
}

func insertDirectory(ctx context.Context, db *mongo.Database, names mongodoc.Collections, actors []domain.Actor) error {
	users := make([]interface{}, 0, len(actors))
	for _, a := range actors {
		users = append(users, bson.M{"_id": a.ID, "displayName": a.Name, "role": string(a.Role), "companyId": a.CompanyID})
	}
	if _, err := db.Collection(names.Users).InsertMany(ctx, users); err != nil {
		return err
	}
	docs := make([]interface{}, 0, len(categories))
	for _, c := range categories {
		docs = append(docs, bson.M{"_id": c, "name": c})
	}
	_, err := db.Collection(names.Categories).InsertMany(ctx, docs)
	return err
}

func randomSurvey(rng *rand.Rand, author domain.Actor, index int) application.SurveyCommand {
	title := fmt.Sprintf("%s #%d", titles[rng.Intn(len(titles))], index+1)
	surveyType := string(domain.SurveyTypeSurvey)
	if rng.Intn(5) == 0 {
		surveyType = string(domain.SurveyTypeTemplate)
	}
	category := categories[rng.Intn(len(categories))]
	duration := 5 + rng.Intn(4)*5
	notify := fmt.Sprintf("%02d:00", 7+rng.Intn(12))
	targets := platforms[rng.Intn(len(platforms))]
	picked := append([]application.QuestionInput(nil), questions[:1+rng.Intn(len(questions))]...)

	cmd := application.SurveyCommand{
		Title:           &title,
		SurveyType:      &surveyType,
		CategoryID:      application.Value(category),
		Duration:        &duration,
		NotifyTime:      &notify,
		TargetPlatforms: &targets,
		Questions:       &picked,
	}
	if author.CompanyID != nil && rng.Intn(2) == 0 {
		cmd.CompanyID = author.CompanyID
	}
	return cmd
}
