// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам различать типы проблем
// и возвращать клиенту понятные ответы.
package common

import "errors"

// Ошибки гачи (билеты, розыгрыш)
var (
	// ErrInsufficientTicket — недостаточно билетов для розыгрыша
	ErrInsufficientTicket = errors.New("недостаточно билетов")
	// ErrInvalidDrawCount — некорректное количество розыгрышей (ноль или отрицательное)
	ErrInvalidDrawCount = errors.New("количество розыгрышей должно быть положительным")
	// ErrValidation — некорректные входные данные запроса
	ErrValidation = errors.New("некорректные входные данные")
)

// Ошибки начисления наград
var (
	// ErrNotFoundCardOrUser — карта или пользователь не найдены в базе.
	// Постоянная ошибка данных: повторять начисление бессмысленно.
	ErrNotFoundCardOrUser = errors.New("карта или пользователь не найдены")
	// ErrConcurrencyConflict — параллельный вызов уже начислил награду.
	// Ожидаемая, безвредная ситуация: карта выдана победившим вызовом.
	ErrConcurrencyConflict = errors.New("награда уже начислена параллельным вызовом")
	// ErrDrawNotFound — запись розыгрыша не найдена
	ErrDrawNotFound = errors.New("розыгрыш не найден")
)

// Ошибки админки
var (
	// ErrNotAdmin — у вызывающего нет прав администратора
	ErrNotAdmin = errors.New("нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)
