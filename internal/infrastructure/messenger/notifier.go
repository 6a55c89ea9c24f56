package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wellnest/survey-api/internal/metrics"
	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

const (
	targetApprovalRequested = "approval_requested"
	targetApprovalDecision  = "approval_decision"
	targetAudience          = "audience"
)

// FailedDelivery は配信に失敗した 1 通分の記録。
type FailedDelivery struct {
	Target      string
	Destination string
	UserID      string
	Text        string
	Payload     map[string]string
	Error       string
	Attempts    int
}

// FailureRecorder は失敗した通知の退避先。
type FailureRecorder interface {
	Record(ctx context.Context, failure FailedDelivery) error
}

// Config はメッセンジャーゲートウェイへの送信設定。
type Config struct {
	Endpoint             string
	ModeratorDestination string
	AuthorDestination    string
	AudienceDestination  string
	ModeratorUserID      string
	AdminBaseURL         string
	Timeout              time.Duration
	Attempts             int
	RetryDelay           time.Duration
}

// Notifier はメッセンジャーゲートウェイ経由で通知を送る。送信は呼び出し元をブロックしない。
type Notifier struct {
	cfg      Config
	client   *retryablehttp.Client
	failures FailureRecorder
	logger   *log.Logger
	goFn     func(func())
}

// NewNotifier は設定の既定値を埋めてから送信クライアントを組み立てる。client が nil なら新規に作る。
// 5xx・429・接続エラーは Attempts 回まで再送する。
func NewNotifier(cfg Config, client *http.Client, failures FailureRecorder, logger *log.Logger) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if strings.TrimSpace(cfg.ModeratorUserID) == "" {
		cfg.ModeratorUserID = "moderators"
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Attempts - 1
	if cfg.RetryDelay > 0 {
		retryClient.RetryWaitMin = cfg.RetryDelay
		retryClient.RetryWaitMax = cfg.RetryDelay
	}
	// 最終試行のレスポンスをそのまま受け取り、ステータスと本文をエラーに残す。
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil
	if logger != nil {
		retryClient.Logger = logger
	}
	if client != nil {
		copied := *client
		retryClient.HTTPClient = &copied
	}
	if retryClient.HTTPClient.Timeout <= 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}

	return &Notifier{
		cfg:      cfg,
		client:   retryClient,
		failures: failures,
		logger:   logger,
		goFn:     func(f func()) { go f() },
	}
}

var _ application.Notifier = (*Notifier)(nil)

// ApprovalRequested はモデレーターへ承認依頼を送る。
func (n *Notifier) ApprovalRequested(ctx context.Context, notice application.ApprovalRequestNotice) {
	text := buildApprovalRequestMessage(n.cfg.AdminBaseURL, notice)
	n.dispatch(ctx, targetApprovalRequested, n.cfg.ModeratorDestination, n.cfg.ModeratorUserID, text, map[string]string{
		"surveyId":     notice.SurveyID,
		"actorId":      notice.ActorID,
		"contentLabel": notice.ContentLabel,
	})
}

// ApprovalDecision は作成者へ審査結果を送る。
func (n *Notifier) ApprovalDecision(ctx context.Context, notice application.DecisionNotice) {
	text := buildDecisionMessage(notice)
	n.dispatch(ctx, targetApprovalDecision, n.cfg.AuthorDestination, notice.RecipientID, text, map[string]string{
		"surveyId": notice.SurveyID,
		"actorId":  notice.ActorID,
		"decision": string(notice.Decision),
	})
}

// Audience は公開対象(企業 ID またはスコープ)へ新着アンケートを知らせる。
func (n *Notifier) Audience(ctx context.Context, notice application.AudienceNotice) {
	text := buildAudienceMessage(notice)
	n.dispatch(ctx, targetAudience, n.cfg.AudienceDestination, notice.Target, text, map[string]string{
		"surveyId": notice.SurveyID,
		"actorId":  notice.ActorID,
	})
}

func (n *Notifier) dispatch(ctx context.Context, target, destination, userID, text string, payload map[string]string) {
	if strings.TrimSpace(n.cfg.Endpoint) == "" {
		metrics.IncNotification(target, "skipped")
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// リクエスト終了後も送信を続けるためキャンセルを切り離す。
	detached := context.WithoutCancel(ctx)
	n.goFn(func() {
		err := n.send(detached, destination, userID, text)
		if err == nil {
			metrics.IncNotification(target, "sent")
			return
		}
		metrics.IncNotification(target, "failed")
		if n.logger != nil {
			n.logger.Printf("%s 通知の送信に失敗: %v", target, err)
		}
		n.persistFailure(detached, FailedDelivery{
			Target:      target,
			Destination: destination,
			UserID:      userID,
			Text:        text,
			Payload:     payload,
			Error:       err.Error(),
			Attempts:    n.cfg.Attempts,
		})
	})
}

func (n *Notifier) persistFailure(ctx context.Context, failure FailedDelivery) {
	if n.failures == nil {
		return
	}
	if err := n.failures.Record(ctx, failure); err != nil && n.logger != nil {
		n.logger.Printf("failed_notifications への保存に失敗: %v", err)
	}
}

func (n *Notifier) send(ctx context.Context, destination, userID, bodyText string) error {
	trimmedUserID := strings.TrimSpace(userID)
	if trimmedUserID == "" {
		return errors.New("userID is required")
	}

	payload := map[string]any{
		"userId": trimmedUserID,
		"text":   bodyText,
	}
	if dest := strings.TrimSpace(destination); dest != "" {
		payload["destination"] = dest
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("メッセンジャー送信用ペイロードの作成に失敗: %w", err)
	}

	endpoint := strings.TrimRight(n.cfg.Endpoint, "/") + "/messages"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("メッセンジャー送信リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("メッセンジャー送信リクエストに失敗: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		message, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		return fmt.Errorf("メッセンジャー送信でエラーが発生: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(message)))
	}
	return nil
}

func buildApprovalRequestMessage(adminBaseURL string, notice application.ApprovalRequestNotice) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("**%s** さんから承認依頼があります。\n", displayName(notice.ActorName, notice.ActorID)))
	builder.WriteString(fmt.Sprintf("- 種別: %s\n", notice.ContentLabel))
	builder.WriteString(fmt.Sprintf("- タイトル: %s\n", notice.SurveyTitle))
	if notice.SurveyID != "" && strings.TrimSpace(adminBaseURL) != "" {
		builder.WriteString(fmt.Sprintf("[管理画面で確認](%s/%s)\n", strings.TrimRight(adminBaseURL, "/"), notice.SurveyID))
	}
	return builder.String()
}

func buildDecisionMessage(notice application.DecisionNotice) string {
	var builder strings.Builder
	title := notice.SurveyTitle
	switch notice.Decision {
	case domain.ContentApproved:
		builder.WriteString(fmt.Sprintf("%s「%s」が承認されました。\n", notice.ContentLabel, title))
	case domain.ContentRejected:
		builder.WriteString(fmt.Sprintf("%s「%s」は差し戻されました。\n", notice.ContentLabel, title))
	default:
		builder.WriteString(fmt.Sprintf("%s「%s」の審査状況が更新されました。\n", notice.ContentLabel, title))
	}
	builder.WriteString(fmt.Sprintf("担当: %s\n", displayName(notice.ActorName, notice.ActorID)))
	if notice.HasComment && strings.TrimSpace(notice.Comment) != "" {
		builder.WriteString("**コメント**\n")
		builder.WriteString("> " + strings.TrimSpace(notice.Comment) + "\n")
	}
	return builder.String()
}

func buildAudienceMessage(notice application.AudienceNotice) string {
	brand := strings.TrimSpace(notice.BrandName)
	if brand == "" {
		return fmt.Sprintf("新しいアンケート「%s」が公開されました。\n", notice.SurveyTitle)
	}
	return fmt.Sprintf("%s から新しいアンケート「%s」が公開されました。\n", brand, notice.SurveyTitle)
}

func displayName(name, id string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return "匿名ユーザー"
}
