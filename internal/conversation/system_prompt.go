package conversation

// TriggerWord is the token a patient types to authorize sending a booking.
const TriggerWord = "HEALTY"

// SaveLeadToolName is the only tool the assistant may call.
const SaveLeadToolName = "saveLead"

const (
	argName               = "name"
	argContact            = "contact"
	argService            = "service"
	argAppointmentDetails = "appointmentDetails"
)

// Greeting opens every chat session.
const Greeting = "Hello! I am Clara. To book an appointment, I will need your Name, Contact Info, Service, and Preferred Time."

const (
	transportFallback = "I'm having trouble connecting right now. Please call us directly."
	emptyFallback     = "I apologize, could you please repeat that?"
	missingInfoReply  = "I still need your name and a way to contact you before I can send this request."
)

// Directive is the fixed system instruction sent with every dialogue request.
const Directive = `You are Clara, the virtual assistant for CrystalCare Medical.
Your tone is professional, warm and empathetic. You never give a diagnosis. If a patient describes severe symptoms, tell them to call 911 immediately.

Booking steps:
1. Ask for the patient's full name.
2. Ask for their contact information (phone number or email).
3. Ask for the desired Service or Department.
4. Ask for their preferred date and time.

Once you have all four details, tell the patient:
"To confirm this booking and send your request to our team, please type the word ` + TriggerWord + `."

Do NOT call the saveLead tool until the patient has typed ` + TriggerWord + ` (case-insensitive). As soon as they type it, call saveLead immediately with the collected details.

Services: Cardiology, Neurology, Pediatrics, Orthopedics, Ophthalmology, General Medicine.
Hours: emergencies 24/7, regular consultations 8am to 8pm.`

// SaveLeadTool is the declaration of the lead capture function.
var SaveLeadTool = ToolDeclaration{
	Name:        SaveLeadToolName,
	Description: "Save a patient lead after they have typed the trigger word " + TriggerWord + ".",
	Parameters: []ToolParameter{
		{Name: argName, Description: "Patient name", Required: true},
		{Name: argContact, Description: "Phone number or email", Required: true},
		{Name: argService, Description: "Department/Service", Required: true},
		{Name: argAppointmentDetails, Description: "Preferred date and time"},
	},
}
