package application

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

// Media folders used by survey writes.
const (
	LogoFolder  = "survey-logos"
	ImageFolder = "survey-images"
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// AuthoringService describes survey write use-cases.
type AuthoringService interface {
	Create(ctx context.Context, actor domain.Actor, cmd SurveyCommand) (*SurveyResult, error)
	Update(ctx context.Context, actor domain.Actor, id string, cmd SurveyCommand) (*SurveyResult, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
}

type authoringService struct {
	surveys    SurveyRepository
	questions  QuestionRepository
	reconciler *QuestionReconciler
	workflow   *ApprovalWorkflow
	media      MediaStorage
	cache      DetailCache
	logger     *log.Logger
	now        func() time.Time
	newKey     func(folder, contentType string) string
}

func NewAuthoringService(
	surveys SurveyRepository,
	questions QuestionRepository,
	reconciler *QuestionReconciler,
	workflow *ApprovalWorkflow,
	media MediaStorage,
	cache DetailCache,
	logger *log.Logger,
) AuthoringService {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &authoringService{
		surveys:    surveys,
		questions:  questions,
		reconciler: reconciler,
		workflow:   workflow,
		media:      media,
		cache:      cache,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newKey:     newMediaKey,
	}
}

func (s *authoringService) Create(ctx context.Context, actor domain.Actor, cmd SurveyCommand) (*SurveyResult, error) {
	if cmd.Title == nil {
		return nil, domain.Invalid("title", "title is required")
	}
	patch, err := buildSurveyPatch(cmd)
	if err != nil {
		return nil, err
	}
	specs, err := cmd.questionSpecs()
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if spec.ID != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotOwned, spec.ID)
		}
	}

	now := s.now()
	survey := &domain.Survey{
		CompanyID:       ownerCompany(actor, cmd.CompanyID),
		CreatedBy:       actor.ID,
		QuestionIDs:     []string{},
		SurveyType:      domain.SurveyTypeDraft,
		Scope:           defaultScope(actor),
		TargetPlatforms: domain.PlatformList{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	patch.ApplyTo(survey)

	media, err := s.resolveMedia(ctx, nil, cmd)
	if err != nil {
		return nil, err
	}
	media.patch.ApplyTo(survey)
	var stamp SurveyPatch
	s.workflow.Stamp(actor, &stamp)
	stamp.ApplyTo(survey)

	if err := s.surveys.Insert(ctx, survey); err != nil {
		s.discardUploads(media.uploaded)
		return nil, fmt.Errorf("insert survey: %w", err)
	}

	return s.finish(ctx, actor, survey, specs, true, media.urls)
}

func (s *authoringService) Update(ctx context.Context, actor domain.Actor, id string, cmd SurveyCommand) (*SurveyResult, error) {
	current, err := s.loadModifiable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	patch, err := buildSurveyPatch(cmd)
	if err != nil {
		return nil, err
	}
	specs, err := cmd.questionSpecs()
	if err != nil {
		return nil, err
	}
	if cmd.Questions != nil {
		if err := s.reconciler.Check(ctx, current, specs); err != nil {
			return nil, err
		}
	}

	media, err := s.resolveMedia(ctx, current, cmd)
	if err != nil {
		return nil, err
	}
	mergeMedia(&patch, media.patch)

	s.workflow.Stamp(actor, &patch)

	updated, err := s.surveys.Patch(ctx, current.ID, cmd.ExpectedVersion, patch)
	if err != nil {
		s.discardUploads(media.uploaded)
		return nil, err
	}
	s.discardUploads(media.replaced)

	return s.finish(ctx, actor, updated, specs, false, media.urls)
}

// finish runs the steps that follow the survey write, in order: questions,
// moderation, then a fresh read of the aggregate.
func (s *authoringService) finish(ctx context.Context, actor domain.Actor, survey *domain.Survey, specs []domain.QuestionSpec, created bool, urls map[string]string) (*SurveyResult, error) {
	defer s.cache.Invalidate(ctx, survey.ID)

	if created || specs != nil {
		if _, err := s.reconciler.Reconcile(ctx, survey, specs); err != nil {
			s.logger.Printf("survey %s: question reconciliation failed: %v", survey.ID, err)
			return nil, err
		}
	}

	outcome, err := s.workflow.OnSubmit(ctx, actor, survey, created)
	if err != nil {
		s.logger.Printf("survey %s: approval step failed after survey write: %v", survey.ID, err)
		return nil, fmt.Errorf("%w: approval: %v", domain.ErrPartialWrite, err)
	}

	fresh, err := s.surveys.FindByID(ctx, survey.ID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.FindLive(ctx, survey.ID)
	if err != nil {
		return nil, err
	}
	return &SurveyResult{Survey: fresh, Questions: questions, Outcome: outcome, UploadURLs: urls}, nil
}

func (s *authoringService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	survey, err := s.loadModifiable(ctx, actor, id)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.surveys.SoftDelete(ctx, survey.ID, now); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, survey.ID)
	if err := s.questions.SoftDeleteBySurvey(ctx, survey.ID, now); err != nil {
		s.logger.Printf("survey %s deleted but its questions were not: %v", survey.ID, err)
		return fmt.Errorf("%w: questions: %v", domain.ErrPartialWrite, err)
	}
	return nil
}

func (s *authoringService) loadModifiable(ctx context.Context, actor domain.Actor, id string) (*domain.Survey, error) {
	survey, err := s.surveys.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(*survey) {
		return nil, domain.ErrSurveyNotFound
	}
	if !actor.CanModify(*survey) {
		return nil, domain.ErrForbidden
	}
	return survey, nil
}

type resolvedMedia struct {
	patch    SurveyPatch
	urls     map[string]string
	uploaded []string
	replaced []string
}

// resolveMedia performs every media side effect that must finish before the
// survey write. Keys of replaced objects are collected for removal once the
// write has committed.
func (s *authoringService) resolveMedia(ctx context.Context, current *domain.Survey, cmd SurveyCommand) (resolvedMedia, error) {
	out := resolvedMedia{urls: map[string]string{}}
	var oldLogo, oldImage *string
	if current != nil {
		oldLogo, oldImage = current.LogoKey, current.ImageKey
	}

	logo, err := s.resolveOne(ctx, "logo", LogoFolder, cmd.Logo, &out)
	if err != nil {
		s.discardUploads(out.uploaded)
		return resolvedMedia{}, err
	}
	image, err := s.resolveOne(ctx, "image", ImageFolder, cmd.Image, &out)
	if err != nil {
		s.discardUploads(out.uploaded)
		return resolvedMedia{}, err
	}
	out.patch.LogoKey = logo
	out.patch.ImageKey = image

	if logo.Set && oldLogo != nil && (logo.Value == nil || *logo.Value != *oldLogo) {
		out.replaced = append(out.replaced, *oldLogo)
	}
	if image.Set && oldImage != nil && (image.Value == nil || *image.Value != *oldImage) {
		out.replaced = append(out.replaced, *oldImage)
	}
	return out, nil
}

func (s *authoringService) resolveOne(ctx context.Context, name, folder string, input MediaInput, out *resolvedMedia) (Field[string], error) {
	switch input.Action {
	case MediaKeep:
		return Field[string]{}, nil
	case MediaClear:
		return Null[string](), nil
	case MediaUpload:
		if len(input.Data) == 0 {
			return Field[string]{}, domain.Invalid(name, "file is empty")
		}
		key, err := s.keyFor(name, folder, input.ContentType)
		if err != nil {
			return Field[string]{}, err
		}
		stored, err := s.media.Upload(ctx, input.Data, input.ContentType, key)
		if err != nil {
			return Field[string]{}, fmt.Errorf("upload %s: %w", name, err)
		}
		out.uploaded = append(out.uploaded, stored)
		return Value(stored), nil
	case MediaReuse:
		srcKey := strings.TrimSpace(input.SourceKey)
		if srcKey == "" {
			return Field[string]{}, domain.Invalid(name, "source file name is required")
		}
		srcFolder := strings.Trim(strings.TrimSpace(input.SourceFolder), "/")
		if srcFolder == "" {
			srcFolder = folder
		}
		destKey := uuid.New().String() + extensionOf(srcKey)
		ok, err := s.media.Copy(ctx, srcFolder, srcKey, folder, destKey)
		if err != nil {
			return Field[string]{}, fmt.Errorf("copy %s: %w", name, err)
		}
		if !ok {
			return Field[string]{}, domain.Invalid(name, "source file does not exist")
		}
		stored := folder + "/" + destKey
		out.uploaded = append(out.uploaded, stored)
		return Value(stored), nil
	case MediaPresign:
		key, err := s.keyFor(name, folder, input.ContentType)
		if err != nil {
			return Field[string]{}, err
		}
		url, err := s.media.PresignUpload(ctx, key, input.ContentType)
		if err != nil {
			return Field[string]{}, fmt.Errorf("presign %s: %w", name, err)
		}
		out.urls[name] = url
		return Value(key), nil
	}
	return Field[string]{}, domain.Invalid(name, "unknown media action")
}

func (s *authoringService) keyFor(name, folder, contentType string) (string, error) {
	if _, ok := imageExtensions[strings.ToLower(contentType)]; !ok {
		return "", domain.Invalid(name, fmt.Sprintf("unsupported content type %q", contentType))
	}
	return s.newKey(folder, contentType), nil
}

// discardUploads removes objects; failures are only logged.
func (s *authoringService) discardUploads(keys []string) {
	if len(keys) == 0 || s.media == nil {
		return
	}
	for _, key := range keys {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.media.Remove(ctx, key); err != nil {
			s.logger.Printf("failed to remove media %s: %v", key, err)
		}
		cancel()
	}
}

func newMediaKey(folder, contentType string) string {
	return folder + "/" + uuid.New().String() + imageExtensions[strings.ToLower(contentType)]
}

func extensionOf(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 && !strings.Contains(key[i:], "/") {
		return strings.ToLower(key[i:])
	}
	return ""
}

// buildSurveyPatch validates the supplied fields of cmd.
func buildSurveyPatch(cmd SurveyCommand) (SurveyPatch, error) {
	var patch SurveyPatch
	if cmd.Title != nil {
		title, err := domain.NewTitle(*cmd.Title)
		if err != nil {
			return SurveyPatch{}, err
		}
		patch.Title = &title
	}
	if cmd.SurveyType != nil {
		surveyType, err := domain.ParseSurveyType(*cmd.SurveyType)
		if err != nil {
			return SurveyPatch{}, err
		}
		patch.SurveyType = &surveyType
	}
	if cmd.Scope != nil {
		scope, err := domain.ParseScope(*cmd.Scope)
		if err != nil {
			return SurveyPatch{}, err
		}
		patch.Scope = &scope
	}
	if cmd.TargetPlatforms != nil {
		platforms, err := domain.NewPlatformList(*cmd.TargetPlatforms)
		if err != nil {
			return SurveyPatch{}, err
		}
		patch.TargetPlatforms = &platforms
	}
	if cmd.NotifyTime != nil {
		notifyTime, err := domain.NewNotifyTime(*cmd.NotifyTime)
		if err != nil {
			return SurveyPatch{}, err
		}
		patch.NotifyTime = &notifyTime
	}
	if cmd.Duration != nil {
		duration, err := domain.NewDuration(*cmd.Duration)
		if err != nil {
			return SurveyPatch{}, err
		}
		patch.Duration = &duration
	}
	if cmd.CategoryID.Set {
		if cmd.CategoryID.Value == nil || strings.TrimSpace(*cmd.CategoryID.Value) == "" {
			patch.CategoryID = Null[string]()
		} else {
			patch.CategoryID = Value(strings.TrimSpace(*cmd.CategoryID.Value))
		}
	}
	return patch, nil
}

func mergeMedia(patch *SurveyPatch, media SurveyPatch) {
	if media.LogoKey.Set {
		patch.LogoKey = media.LogoKey
	}
	if media.ImageKey.Set {
		patch.ImageKey = media.ImageKey
	}
}

// ownerCompany pins organization actors to their own company. Root may
// create a survey for any company or a global one.
func ownerCompany(actor domain.Actor, requested *string) *string {
	if actor.IsRoot() {
		if requested == nil || strings.TrimSpace(*requested) == "" {
			return nil
		}
		company := strings.TrimSpace(*requested)
		return &company
	}
	if actor.CompanyID == nil || *actor.CompanyID == "" {
		return nil
	}
	company := *actor.CompanyID
	return &company
}

func defaultScope(actor domain.Actor) domain.Scope {
	if actor.CompanyID != nil && *actor.CompanyID != "" && !actor.IsRoot() {
		return domain.ScopeB2B
	}
	return domain.ScopeAll
}
