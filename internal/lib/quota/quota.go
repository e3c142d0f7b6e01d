// Package quota реализует чистую логику суточного сброса квоты сканирований
// и отсчёта дней подписки. Пакет не выполняет ввод-вывод: принимает текущее
// состояние и момент времени, возвращает новое состояние. Сохранение
// результата — ответственность вызывающего кода.
package quota

import "time"

// Clock абстрагирует источник текущего времени, чтобы сервисы могли
// детерминированно проверять переходы через границу суток в тестах.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает системное время.
type SystemClock struct{}

// Now возвращает time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// State хранит поля записи пользователя, которыми управляет движок сброса.
type State struct {
	ScanCount    int       // Остаток сканирований на текущий день
	DaysLeft     int       // Остаток дней подписки
	Paid         bool      // Активна ли подписка
	LastScanDate time.Time // Дата последней оценки сброса
}

// DayElapsed сообщает, пересечена ли граница календарных суток между last и
// now в часовом поясе loc. Сравниваются даты, а не моменты времени. Нулевое
// значение last считается пересечением: самая первая оценка всегда применяет
// сброс, чтобы дефолтное состояние стало согласованным.
func DayElapsed(last, now time.Time, loc *time.Location) bool {
	if last.IsZero() {
		return true
	}
	y1, m1, d1 := last.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// ApplyRollover применяет переход через границу суток к состоянию квоты.
//
// За один вызов применяется ровно один суточный шаг, сколько бы календарных
// дней ни прошло с последней оценки. У оплаченного пользователя списывается
// один день подписки и восстанавливается дневной лимит allowance; при
// обнулении DaysLeft подписка гаснет (Paid=false, ScanCount=0). Неоплаченный
// пользователь сканирований при сбросе не получает. LastScanDate в любом
// случае переводится на текущую дату, поэтому повторные вызовы в течение
// одних суток идемпотентны.
//
// Возвращает новое состояние и признак того, что состояние изменилось.
func ApplyRollover(st State, now time.Time, loc *time.Location, allowance int) (State, bool) {
	if !DayElapsed(st.LastScanDate, now, loc) {
		return st, false
	}
	if st.Paid {
		if st.DaysLeft > 0 {
			st.DaysLeft--
			st.ScanCount = allowance
		}
		if st.DaysLeft == 0 {
			st.Paid = false
			st.ScanCount = 0
		}
	}
	y, m, d := now.In(loc).Date()
	st.LastScanDate = time.Date(y, m, d, 0, 0, 0, 0, loc)
	return st, true
}
