package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed            = errors.New("validation failed")
	ErrPasswordTooShort            = errors.New("password is too short")
	ErrTeamNameRequired            = errors.New("team name is required")
	ErrCompetitionNameRequired     = errors.New("competition name is required")
	ErrCompetitionInvalidDateRange = errors.New("competition end date must not be before start date")
	ErrCompetitionInvalidStatus    = errors.New("invalid competition status provided")
	ErrPhaseInvalidDateRange       = errors.New("phase end date must not be before start date")
	ErrPhaseInvalidType            = errors.New("invalid phase type provided")
	ErrScoreOutOfRange             = errors.New("score values must be integers between 1 and 5")
	ErrUserAlreadyInTeam           = errors.New("user is already in a team")
	ErrUserNotInTeam               = errors.New("user is not a member of this team")
	ErrCannotRemoveCaptain         = errors.New("cannot remove the team captain")
	ErrRegistrationNotOpen         = errors.New("competition registration is not open")

	// Недопустимое состояние фазы для запрошенной записи
	ErrPhaseInactive            = errors.New("phase is not currently in progress")
	ErrPhaseWrongType           = errors.New("action is not allowed during this phase type")
	ErrPhaseCompetitionMismatch = errors.New("phase does not belong to this competition")

	// Ошибки конфликтов
	ErrRegistrationConflict    = errors.New("user is already registered for this competition")
	ErrTeamNameConflict        = errors.New("team name is already in use within this competition")
	ErrCompetitionNameConflict = errors.New("competition name already exists for this year")
	ErrPhaseOrderConflict      = errors.New("phase order is already taken within this competition")

	// Ошибки авторизации и политики
	ErrForbiddenOperation  = errors.New("operation not allowed for the current user")
	ErrSelfRatingForbidden = errors.New("players may not submit peer ratings for themselves")
	ErrNotTeamMember       = errors.New("player is not a current member of the team")

	// Ошибки, специфичные для сущностей (дают больше контекста, чем ErrNotFound)
	ErrUserNotFound         = errors.New("user not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrCompetitionNotFound  = errors.New("competition not found")
	ErrPhaseNotFound        = errors.New("competition phase not found")
	ErrRegistrationNotFound = errors.New("competition registration not found")
)
