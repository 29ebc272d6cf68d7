// Package common содержит общие утилиты, используемые во всём проекте.
package common

// CeilDiv возвращает целочисленное деление с округлением вверх.
// Используется для расчёта возврата билетов: ceil(незавершённые / розыгрышей_на_билет).
//
// Примеры:
//
//	CeilDiv(10, 10) → 1
//	CeilDiv(11, 10) → 2
//	CeilDiv(0, 10)  → 0
func CeilDiv(n, d int) int {
	if d <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
