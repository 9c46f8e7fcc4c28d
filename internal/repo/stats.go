package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/quiz_platform/internal/models"
	"github.com/Skotchmaster/quiz_platform/internal/transport"
)

func (r *GormRepo) count(ctx context.Context, model any, query string, args ...any) (int64, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *GormRepo) LandingSummary(ctx context.Context) (*transport.LandingSummary, error) {
	var (
		s   transport.LandingSummary
		err error
	)

	if s.Users, err = r.count(ctx, &models.User{}, "is_deleted = ? AND status = ?", false, models.StatusActive); err != nil {
		return nil, err
	}
	if s.Quizzes, err = r.count(ctx, &models.Quiz{}, "is_deleted = ? AND is_published = ?", false, true); err != nil {
		return nil, err
	}
	if err = r.DB.WithContext(ctx).Model(&models.Question{}).
		Joins("JOIN quizzes ON quizzes.id = questions.quiz_id").
		Where("quizzes.is_deleted = ? AND quizzes.is_published = ?", false, true).
		Count(&s.Questions).Error; err != nil {
		return nil, err
	}
	if s.Attempts, err = r.count(ctx, &models.QuizAttempt{}, ""); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormRepo) Dashboard(ctx context.Context, now time.Time, topN int) (*transport.Dashboard, error) {
	var (
		d   = transport.Dashboard{UsersByStatus: map[string]int64{}}
		err error
	)

	if d.TotalUsers, err = r.count(ctx, &models.User{}, "is_deleted = ?", false); err != nil {
		return nil, err
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err = r.DB.WithContext(ctx).Model(&models.User{}).
		Select("status, COUNT(*) AS count").
		Where("is_deleted = ?", false).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		d.UsersByStatus[row.Status] = row.Count
	}

	if d.NewUsersLast30Days, err = r.count(ctx, &models.User{}, "is_deleted = ? AND created_at >= ?", false, now.AddDate(0, 0, -30)); err != nil {
		return nil, err
	}
	if d.ActiveLast7Days, err = r.count(ctx, &models.User{}, "is_deleted = ? AND last_login >= ?", false, now.AddDate(0, 0, -7)); err != nil {
		return nil, err
	}
	if d.TotalQuizzes, err = r.count(ctx, &models.Quiz{}, "is_deleted = ?", false); err != nil {
		return nil, err
	}
	if d.PublishedQuizzes, err = r.count(ctx, &models.Quiz{}, "is_deleted = ? AND is_published = ?", false, true); err != nil {
		return nil, err
	}
	if d.TotalAttempts, err = r.count(ctx, &models.QuizAttempt{}, ""); err != nil {
		return nil, err
	}

	if err = r.DB.WithContext(ctx).Model(&models.QuizAttempt{}).
		Select("COALESCE(AVG(CAST(score AS REAL) * 100.0 / max_score), 0)").
		Where("max_score > ?", 0).
		Scan(&d.AverageScorePercent).Error; err != nil {
		return nil, err
	}

	d.TopQuizzes = make([]transport.QuizPopularity, 0, topN)
	if err = r.DB.WithContext(ctx).Model(&models.QuizAttempt{}).
		Select("quiz_attempts.quiz_id AS quiz_id, quizzes.title AS title, COUNT(*) AS attempts").
		Joins("JOIN quizzes ON quizzes.id = quiz_attempts.quiz_id").
		Where("quizzes.is_deleted = ?", false).
		Group("quiz_attempts.quiz_id, quizzes.title").
		Order("attempts DESC").
		Limit(topN).
		Scan(&d.TopQuizzes).Error; err != nil {
		return nil, err
	}

	return &d, nil
}
