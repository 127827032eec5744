package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/christopherklint97/citabot/internal/availability"
	"github.com/christopherklint97/citabot/internal/caltime"
)

const (
	msgAskName        = "¡Con gusto te ayudo a agendar tu llamada de orientación! Para empezar, ¿cuál es tu nombre completo?"
	msgInvalidEmail   = "Ese correo no parece válido. ¿Me lo compartes de nuevo? Por ejemplo: nombre@correo.com"
	msgAskNotes       = "¿Quieres agregar alguna nota o comentario para la llamada? Si no, responde \"no\"."
	msgCancelled      = "Listo, cancelé el proceso de agenda. Si quieres retomarlo, escribe \"agendar cita\"."
	msgNotConfigured  = "Por ahora no puedo agendar citas automáticamente. Un miembro del equipo te contactará para coordinar la llamada."
	msgCalendarError  = "Tuvimos un problema al consultar el calendario. Por favor intenta de nuevo en unos minutos."
	msgFinalizeRetry  = "Tuvimos un problema al confirmar el horario con el calendario. ¿Me repites la hora que prefieres para intentarlo de nuevo?"
	msgCreateFailed   = "No pudimos crear la cita en el calendario. Avisé al equipo para que te contacte y termine de agendarla contigo. Si prefieres intentarlo tú de nuevo, escribe \"agendar cita\"."
	msgRestart        = "Se perdió el avance de tu cita. Escribe \"agendar cita\" para comenzar de nuevo."
	msgNoMoreSlots    = "No encontré más horarios disponibles en los próximos días."
	msgNeedListFirst  = "Primero escribe \"horarios disponibles\" para ver opciones y después \"mostrar más horarios\" para ver más."
	msgAskWhichDate   = "Claro, ¿qué fecha te gustaría consultar?"
	msgTimeNotUnderst = "No entendí la hora. Escríbela por ejemplo como \"10:30\", \"11am\" o \"a las 2 de la tarde\"."
	msgBookHint       = "Si quieres reservar, escribe \"agendar cita\"."
	msgMoreHint       = "Escribe \"mostrar más horarios\" para ver más opciones."
)

func (a *Assistant) hoursText() string {
	return fmt.Sprintf("de lunes a viernes de %02d:00 a %02d:00", a.settings.StartHour, a.settings.EndHour)
}

func (a *Assistant) askEmail(name string) string {
	return fmt.Sprintf("Gracias, %s. ¿Cuál es tu correo electrónico?", name)
}

func (a *Assistant) askDate() string {
	return fmt.Sprintf("¿Qué fecha te gustaría para la llamada? Por ejemplo: \"mañana\", \"15 de mayo\" o \"20/05\". Atendemos %s.", a.hoursText())
}

func (a *Assistant) askDateAgain() string {
	return "No entendí la fecha. " + a.askDate()
}

func (a *Assistant) askTime() string {
	return "¿A qué hora te gustaría? Escribe la hora, por ejemplo \"10:30\" o \"11am\"."
}

func (a *Assistant) clarifyTime(suggestion caltime.TimeParts) string {
	return fmt.Sprintf("¿Te refieres a las %s? Atendemos %s. Escribe la hora con am/pm o en formato de 24 horas.",
		caltime.FormatTime(suggestion), a.hoursText())
}

func (a *Assistant) outOfRange() string {
	return fmt.Sprintf("Ese horario está fuera de nuestro horario de atención. Atendemos %s y cada llamada dura %d minutos.",
		a.hoursText(), a.settings.AppointmentMinutes)
}

func (a *Assistant) weekend(d caltime.DateParts) string {
	return fmt.Sprintf("El %s es fin de semana y no agendamos llamadas. Atendemos %s. ¿Qué otra fecha te funciona?",
		caltime.FormatLongDate(d), a.hoursText())
}

func pastDate(d caltime.DateParts) string {
	return fmt.Sprintf("El %s ya pasó. ¿Qué otra fecha te funciona?", caltime.FormatDate(d))
}

func noSlotsOn(d caltime.DateParts) string {
	return fmt.Sprintf("No hay horarios disponibles el %s. ¿Te gustaría probar otra fecha?", caltime.FormatLongDate(d))
}

func invalidZone(zone string) string {
	return fmt.Sprintf("No reconozco la zona horaria \"%s\". Usa un nombre como \"America/Mexico_City\" o un desfase como \"GMT-6\".", zone)
}

func (a *Assistant) notice() string {
	return fmt.Sprintf("Necesitamos al menos %s de anticipación para agendar una llamada.", humanDuration(a.settings.MinimumNotice))
}

func humanDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	switch {
	case minutes == 60:
		return "1 hora"
	case minutes > 60 && minutes%60 == 0:
		return fmt.Sprintf("%d horas", minutes/60)
	case minutes == 1:
		return "1 minuto"
	default:
		return fmt.Sprintf("%d minutos", minutes)
	}
}

func slotOccupied() string {
	return "Ese horario ya está ocupado."
}

func timeConfirmed(d caltime.DateParts, t caltime.TimeParts, zone string) string {
	return fmt.Sprintf("Perfecto, apartamos el %s a las %s (%s).", caltime.FormatLongDate(d), caltime.FormatTime(t), zone)
}

func timeAvailable(d caltime.DateParts, t caltime.TimeParts, zone string) string {
	return fmt.Sprintf("¡Sí! El %s a las %s (%s) está disponible. %s", caltime.FormatLongDate(d), caltime.FormatTime(t), zone, msgBookHint)
}

func earliestSlot(s availability.Slot, zone string) string {
	return fmt.Sprintf("El horario más próximo disponible es el %s de %s a %s (%s).",
		caltime.FormatLongDate(s.Date), caltime.FormatTime(s.StartTime), caltime.FormatTime(s.EndTime), zone)
}

func earliestOnDate(s availability.Slot, zone string) string {
	return fmt.Sprintf("El horario más próximo ese día es de %s a %s (%s). Escribe esa hora para reservarlo.",
		caltime.FormatTime(s.StartTime), caltime.FormatTime(s.EndTime), zone)
}

func noSlotsAhead(days int) string {
	return fmt.Sprintf("No encontré horarios disponibles en los próximos %d días.", days)
}

func (a *Assistant) confirmation(name string, d caltime.DateParts, t caltime.TimeParts, zone, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "¡Listo, %s! Tu llamada de orientación con %s quedó agendada para el %s a las %s (%s).",
		name, a.settings.OrganizationName, caltime.FormatLongDate(d), caltime.FormatTime(t), zone)
	b.WriteString(" Te enviamos la invitación a tu correo.")
	if link != "" {
		fmt.Fprintf(&b, "\nVer en el calendario: %s", link)
	}
	return b.String()
}

func dateHeader(d caltime.DateParts, zone string) string {
	return fmt.Sprintf("Estos son los horarios disponibles para el %s (hora de %s):", caltime.FormatLongDate(d), zone)
}

func upcomingHeader(zone string) string {
	return fmt.Sprintf("Estos son los próximos horarios disponibles (hora de %s):", zone)
}

// slotList renders one bullet per slot under header.
func slotList(header string, slots []availability.Slot) string {
	var b strings.Builder
	b.WriteString(header)
	for _, s := range slots {
		fmt.Fprintf(&b, "\n• %s, de %s a %s", caltime.FormatLongDate(s.Date),
			caltime.FormatTime(s.StartTime), caltime.FormatTime(s.EndTime))
	}
	return b.String()
}

// timeList is slotList for slots on a single known date.
func timeList(header string, slots []availability.Slot) string {
	var b strings.Builder
	b.WriteString(header)
	for _, s := range slots {
		fmt.Fprintf(&b, "\n• %s a %s", caltime.FormatTime(s.StartTime), caltime.FormatTime(s.EndTime))
	}
	return b.String()
}

func eventSummary(org, name string) string {
	return fmt.Sprintf("%s - Llamada de orientación con %s", org, name)
}

func eventDescription(name, email, phone, notes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nombre: %s\nCorreo: %s", name, email)
	if phone != "" {
		fmt.Fprintf(&b, "\nTeléfono: %s", phone)
	}
	if notes != "" {
		fmt.Fprintf(&b, "\nNotas: %s", notes)
	}
	return b.String()
}
