package bot

import "github.com/demosglok/symptomsbot/internal/models"

// Canned reply texts. The greeting mirrors the bot's public description;
// the rest are single-purpose acknowledgements.
const (
	greetingText = `Hello, I'm the covid19 symptoms bot. My aim is to help scientists and researchers get a better picture of untested and invisible covid19 cases.

I will ask 7 simple questions every day if you agree to have this info collected. It'll take less than 2 minutes for you but will help a lot at global scale. None of your personal information will be shared. Only anonymised and aggregated data will be available to verified researchers.

You can stop regular questions at any time.

Possible commands for the bot are
"hi" - this message
"askme" - ask the set of questions
"stop" - stop regular asking
"deleteme" - delete all my data forever`

	consentPromptText = "Do you agree to be questioned regularly? (you can cancel any time)"

	stopAckText = "Thanks for your interest in the bot. Once you're ready to be questioned again, just type 'hi'"

	disagreeAckText = "Thanks for your interest in this bot and the COVID19 response. If you change your mind, the bot is always happy to start questioning"

	startKeepPreviousText = "Hello, I'll ask 7 questions about your health now. If nothing changed, select 'Nothing change', otherwise press OK"

	startSkipTodayText = "Hello, I'll ask 7 questions about your health now. If you want to skip, select 'Skip today', otherwise press OK"

	thankYouText = "Thank you for answering. This is important. See you tomorrow."

	attachmentAckText = "Message with attachment received"
)

// consentButtons are the yes/no consent quick replies.
func consentButtons() []models.QuickReplyButton {
	return []models.QuickReplyButton{
		{Title: "Yes", Payload: models.PayloadAgree},
		{Title: "No", Payload: models.PayloadDisagree},
	}
}

// startButtons builds the start-survey quick replies. The second button is
// "Nothing change" when a prior answer record exists, "Skip today" otherwise.
func startButtons(keepPrevious bool) []models.QuickReplyButton {
	buttons := []models.QuickReplyButton{
		{Title: "OK", Payload: models.PayloadStartOK},
	}
	if keepPrevious {
		buttons = append(buttons, models.QuickReplyButton{Title: "Nothing change", Payload: models.PayloadNothingChange})
	} else {
		buttons = append(buttons, models.QuickReplyButton{Title: "Skip today", Payload: models.PayloadSkipToday})
	}
	return buttons
}

// healthAnswerButtons are the tri-state answer quick replies.
func healthAnswerButtons() []models.QuickReplyButton {
	return []models.QuickReplyButton{
		{Title: "YES", Payload: models.PayloadAnswerYes},
		{Title: "NO", Payload: models.PayloadAnswerNo},
		{Title: "Not sure", Payload: models.PayloadAnswerNotSure},
	}
}
