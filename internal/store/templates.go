package store

import (
	"context"

	"progress/internal/models"
)

func (s *Store) ListHabitTemplates(ctx context.Context) ([]models.HabitTemplate, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, title, description, frequency, icon, color, category, popularity
		FROM habit_templates ORDER BY popularity DESC, title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.HabitTemplate{}
	for rows.Next() {
		var t models.HabitTemplate
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Frequency, &t.Icon, &t.Color, &t.Category, &t.Popularity); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetHabitTemplate(ctx context.Context, id int) (models.HabitTemplate, error) {
	var t models.HabitTemplate
	err := s.q.QueryRowContext(ctx,
		`SELECT id, title, description, frequency, icon, color, category, popularity
		FROM habit_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Frequency, &t.Icon, &t.Color, &t.Category, &t.Popularity)
	return t, notFound(err, "habit template")
}

func (s *Store) IncrementHabitTemplatePopularity(ctx context.Context, id int) error {
	res, err := s.q.ExecContext(ctx, "UPDATE habit_templates SET popularity = popularity + 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	return rowsAffected(res, "habit template")
}

func (s *Store) ListGoalTemplates(ctx context.Context) ([]models.GoalTemplate, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, title, description, category, sub_goals, popularity
		FROM goal_templates ORDER BY popularity DESC, title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.GoalTemplate{}
	for rows.Next() {
		var t models.GoalTemplate
		var subGoals string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &subGoals, &t.Popularity); err != nil {
			return nil, err
		}
		t.SubGoals = decodeList(subGoals)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetGoalTemplate(ctx context.Context, id int) (models.GoalTemplate, error) {
	var t models.GoalTemplate
	var subGoals string
	err := s.q.QueryRowContext(ctx,
		"SELECT id, title, description, category, sub_goals, popularity FROM goal_templates WHERE id = ?", id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Category, &subGoals, &t.Popularity)
	t.SubGoals = decodeList(subGoals)
	return t, notFound(err, "goal template")
}

func (s *Store) IncrementGoalTemplatePopularity(ctx context.Context, id int) error {
	res, err := s.q.ExecContext(ctx, "UPDATE goal_templates SET popularity = popularity + 1 WHERE id = ?", id)
	if err != nil {
		return err
	}
	return rowsAffected(res, "goal template")
}
