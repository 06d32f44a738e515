package handler

import "github.com/msomdec/gymtrack/internal/domain"

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type cycleStartRequest struct {
	StartDate string `json:"startDate"`
}

type cycleStartResponse struct {
	StartDate  string `json:"startDate"`
	CurrentDay int    `json:"currentDay"`
}

type createSessionRequest struct {
	Date string `json:"date"`
}

type toggleDayRequest struct {
	DayNumber       int   `json:"dayNumber"`
	ExerciseGroupID int64 `json:"exerciseGroupId"`
}

type selectExercisesRequest struct {
	DayNumber   int   `json:"dayNumber"`
	Exercise1ID int64 `json:"exercise1Id"`
	Exercise2ID int64 `json:"exercise2Id"`
}

type sessionResponse struct {
	Session *domain.Session `json:"session"`
}

type setResponse struct {
	Set *domain.Set `json:"set"`
}

type successResponse struct {
	Success bool `json:"success"`
}
