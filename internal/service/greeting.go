package service

import "github.com/qcom/callflow/internal/models"

const fallbackLanguage = "en"

var greetingTemplates = map[string]map[models.Purpose]string{
	"en": {
		models.PurposeEMIReminder:    "Hello! This is an important automated call from your bank. We are calling to remind you that your EMI payment is due soon. To avoid late fees, please ensure your account is funded. We have also sent you an SMS with the payment details.",
		models.PurposePolicyRenewal:  "Hello! This is a courtesy call from your insurance provider. Your insurance policy is due for renewal. Renewing now keeps you protected without interruption. Please check your SMS for the renewal link.",
		models.PurposeLoanOffer:      "Hello! Based on your credit history, you have been pre-approved for a personal loan offer at a special interest rate. If you are interested, please check the SMS we just sent you.",
		models.PurposeClaimUpdate:    "Hello! This is an update on the insurance claim you recently submitted. Your claim is being processed by our team and you will receive further updates shortly.",
		models.PurposeDebtRecovery:   "Hello! This is a call from your bank regarding an overdue amount on your account. Please contact us or make a payment at the earliest to avoid further charges.",
		models.PurposeLeadGeneration: "Hello! We are reaching out with financial products that may suit your needs. Reply to our SMS if you would like a callback from our team.",
		models.PurposeCreditRepair:   "Hello! We are calling about steps that can help improve your credit score. Our advisors can walk you through a personalised plan.",
	},
	"hi": {
		models.PurposeEMIReminder:    "नमस्ते! यह आपके बैंक की ओर से एक महत्वपूर्ण स्वचालित कॉल है। आपकी ईएमआई भुगतान की तिथि जल्द आ रही है। विलंब शुल्क से बचने के लिए कृपया अपने खाते में पर्याप्त राशि रखें। भुगतान विवरण हमने एसएमएस द्वारा भेज दिया है।",
		models.PurposePolicyRenewal:  "नमस्ते! यह आपके बीमा प्रदाता की ओर से कॉल है। आपकी बीमा पॉलिसी नवीनीकरण के लिए देय है। कृपया नवीनीकरण लिंक के लिए अपना एसएमएस देखें।",
		models.PurposeLoanOffer:      "नमस्ते! आपके अच्छे क्रेडिट इतिहास के आधार पर आपको विशेष ब्याज दर पर व्यक्तिगत ऋण के लिए पूर्व-स्वीकृति मिली है। अधिक जानकारी के लिए कृपया एसएमएस देखें।",
		models.PurposeClaimUpdate:    "नमस्ते! आपके हाल ही में जमा किए गए बीमा दावे पर हमारी टीम काम कर रही है। आपको जल्द ही और जानकारी दी जाएगी।",
		models.PurposeDebtRecovery:   "नमस्ते! यह आपके बैंक की ओर से आपके खाते पर बकाया राशि के संबंध में कॉल है। अतिरिक्त शुल्क से बचने के लिए कृपया जल्द से जल्द भुगतान करें या हमसे संपर्क करें।",
		models.PurposeLeadGeneration: "नमस्ते! हम आपकी ज़रूरतों के अनुसार वित्तीय उत्पादों की जानकारी देने के लिए कॉल कर रहे हैं। हमारी टीम से कॉलबैक के लिए कृपया हमारे एसएमएस का उत्तर दें।",
		models.PurposeCreditRepair:   "नमस्ते! हम आपके क्रेडिट स्कोर को बेहतर बनाने के उपायों के बारे में कॉल कर रहे हैं। हमारे सलाहकार आपको एक व्यक्तिगत योजना समझा सकते हैं।",
	},
	"ta": {
		models.PurposeEMIReminder:    "வணக்கம்! இது உங்கள் வங்கியிலிருந்து ஒரு முக்கியமான தானியங்கி அழைப்பு. உங்கள் இஎம்ஐ செலுத்தும் தேதி விரைவில் வருகிறது. தாமதக் கட்டணத்தைத் தவிர்க்க உங்கள் கணக்கில் போதுமான தொகையை வைத்திருக்கவும்.",
		models.PurposePolicyRenewal:  "வணக்கம்! உங்கள் காப்பீட்டுக் கொள்கை புதுப்பிக்கப்பட வேண்டிய நேரம் வந்துவிட்டது. புதுப்பித்தல் இணைப்புக்கு உங்கள் எஸ்எம்எஸ்ஸைப் பார்க்கவும்.",
		models.PurposeLoanOffer:      "வணக்கம்! உங்கள் சிறந்த கடன் வரலாற்றின் அடிப்படையில் சிறப்பு வட்டி விகிதத்தில் தனிநபர் கடனுக்கு நீங்கள் முன் அங்கீகரிக்கப்பட்டுள்ளீர்கள்.",
		models.PurposeClaimUpdate:    "வணக்கம்! நீங்கள் சமர்ப்பித்த காப்பீட்டுக் கோரிக்கை எங்கள் குழுவால் செயலாக்கப்படுகிறது. விரைவில் மேலும் தகவல்கள் அனுப்பப்படும்.",
		models.PurposeDebtRecovery:   "வணக்கம்! உங்கள் கணக்கில் நிலுவையில் உள்ள தொகை குறித்து உங்கள் வங்கியிலிருந்து அழைக்கிறோம். கூடுதல் கட்டணங்களைத் தவிர்க்க விரைவில் செலுத்தவும் அல்லது எங்களைத் தொடர்பு கொள்ளவும்.",
		models.PurposeLeadGeneration: "வணக்கம்! உங்கள் தேவைகளுக்கு ஏற்ற நிதி சேவைகள் பற்றி தெரிவிக்க அழைக்கிறோம். எங்கள் குழுவிடமிருந்து அழைப்பைப் பெற எங்கள் எஸ்எம்எஸ்ஸுக்கு பதிலளிக்கவும்.",
		models.PurposeCreditRepair:   "வணக்கம்! உங்கள் கடன் மதிப்பெண்ணை மேம்படுத்தும் வழிகள் பற்றி அழைக்கிறோம். எங்கள் ஆலோசகர்கள் உங்களுக்கான தனிப்பட்ட திட்டத்தை விளக்குவார்கள்.",
	},
}

var defaultGreetings = map[string]string{
	"en": "Hello! This is a call from your bank.",
	"hi": "नमस्ते! यह आपके बैंक की ओर से एक कॉल है।",
	"ta": "வணக்கம்! இது உங்கள் வங்கியிலிருந்து ஒரு அழைப்பு.",
}

var recordingDisclosures = map[string]string{
	"en": "This call may be recorded for quality and training purposes.",
	"hi": "गुणवत्ता और प्रशिक्षण के लिए इस कॉल को रिकॉर्ड किया जा सकता है।",
	"ta": "தரம் மற்றும் பயிற்சி நோக்கங்களுக்காக இந்த அழைப்பு பதிவு செய்யப்படலாம்.",
}

// greetingLanguage maps unsupported languages to English.
func greetingLanguage(language string) string {
	if _, ok := defaultGreetings[language]; ok {
		return language
	}
	return fallbackLanguage
}

// RecordingDisclosure returns the localized call-recording notice.
func RecordingDisclosure(language string) string {
	return recordingDisclosures[greetingLanguage(language)]
}

// Greeting renders the spoken greeting for purpose in language: the purpose
// template followed by the recording disclosure.
func Greeting(purpose models.Purpose, language string) string {
	lang := greetingLanguage(language)
	template, ok := greetingTemplates[lang][purpose]
	if !ok {
		template = defaultGreetings[lang]
	}
	return template + " " + recordingDisclosures[lang]
}
